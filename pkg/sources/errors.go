package sources

import "errors"

// ErrSourceUnavailable is wrapped by every failure to obtain entries from
// one remote source: transport errors, non-200 statuses and empty results.
var ErrSourceUnavailable = errors.New("source unavailable")
