package probe

import (
	"context"
	"errors"
	"time"
)

// ErrProbeFailure is wrapped by every reason a candidate fails validation
var ErrProbeFailure = errors.New("probe failed")

// CheckType represents the type of reachability check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeICMP CheckType = "icmp"
)

// Result represents the outcome of a single check
type Result struct {
	Healthy    bool
	Message    string
	StatusCode int
	CheckedAt  time.Time
	Duration   time.Duration
}

// Checker is the interface that all reachability checks implement
type Checker interface {
	// Check performs the check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of check
	Type() CheckType
}
