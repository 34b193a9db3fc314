package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/hostsaccel/pkg/hosts"
	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/cuemby/hostsaccel/pkg/types"
)

// DefaultCacheMaxAge is how long a snapshot stays fresh
const DefaultCacheMaxAge = 30 * 24 * time.Hour

// timestamp layouts accepted in last_updated, newest writer first
var lastUpdatedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// EmergencyCache is the on-disk snapshot of a known-good DomainIPSet
type EmergencyCache struct {
	Path   string
	MaxAge time.Duration
}

// NewEmergencyCache creates a cache stored at path
func NewEmergencyCache(path string, maxAge time.Duration) *EmergencyCache {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return &EmergencyCache{Path: path, MaxAge: maxAge}
}

// Load reads the snapshot. A missing file returns an error wrapping
// fs.ErrNotExist.
func (c *EmergencyCache) Load() (types.EmergencySnapshot, error) {
	var snap types.EmergencySnapshot

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return snap, fmt.Errorf("failed to read emergency cache: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to parse emergency cache %s: %w", c.Path, err)
	}
	if snap.IPs == nil {
		snap.IPs = make(types.DomainIPSet)
	}
	return snap, nil
}

// Save replaces the snapshot with set, stamped now
func (c *EmergencyCache) Save(set types.DomainIPSet) error {
	now := time.Now()
	snap := types.EmergencySnapshot{
		Version:     now.Format("2006.01.02"),
		LastUpdated: now.Format(time.RFC3339),
		IPs:         set,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal emergency cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := hosts.WriteFileAtomic(c.Path, data); err != nil {
		return fmt.Errorf("failed to write emergency cache: %w", err)
	}

	logger := log.WithComponent("cache")
	logger.Debug().
		Str("path", c.Path).
		Int("domains", len(set)).
		Msg("emergency cache saved")
	return nil
}

// Stale reports whether the snapshot is missing, unreadable or older than
// MaxAge at now. Age comes from last_updated, or from the file's
// modification time when that field does not parse.
func (c *EmergencyCache) Stale(now time.Time) bool {
	info, err := os.Stat(c.Path)
	if err != nil {
		return true
	}

	snap, err := c.Load()
	if err != nil {
		return true
	}

	updated := info.ModTime()
	if t, ok := parseLastUpdated(snap.LastUpdated); ok {
		updated = t
	}

	maxAge := c.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return now.Sub(updated) > maxAge
}

// Refresh fetches the first usable source (minus excluded domains) and
// saves it, falling back to the built-in set when every source fails. The
// saved set is returned even when saving fails.
func (c *EmergencyCache) Refresh(ctx context.Context, sources []Source, excludeDomains []string) (types.DomainIPSet, error) {
	logger := log.WithComponent("sources")

	set := firstUsable(ctx, sources, excludeDomains)
	if set == nil {
		logger.Warn().Msg("every source failed, refreshing emergency cache with built-in addresses")
		set = exclude(Builtin(), excludeDomains)
	}

	if err := c.Save(set); err != nil {
		return set, err
	}

	logger.Info().
		Str("path", c.Path).
		Int("domains", len(set)).
		Msg("emergency cache refreshed")
	return set, nil
}

func parseLastUpdated(value string) (time.Time, bool) {
	for _, layout := range lastUpdatedLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, value)
		} else {
			t, err = time.ParseInLocation(layout, value, time.Local)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isMissing(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
