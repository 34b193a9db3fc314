package state

import (
	"errors"
	"time"

	"github.com/cuemby/hostsaccel/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Store persists what must outlive a single hostsaccel process
type Store interface {
	// Session backup journal, one entry per hosts file path
	SaveBackup(backup *types.SessionBackup) error
	LoadBackup(hostsPath string) (*types.SessionBackup, error)
	ClearBackup(hostsPath string) error

	// Most recent benchmark results
	SaveRanking(ranking *types.Ranking) error
	LastRanking() (*types.Ranking, error)

	// Watchdog rate limiting, per target domain
	LastCheck(target string) (time.Time, error)
	SetLastCheck(target string, at time.Time) error

	Close() error
}
