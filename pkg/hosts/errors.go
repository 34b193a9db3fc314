package hosts

import "errors"

var (
	// ErrIO is returned when the hosts file cannot be read, decoded or replaced
	ErrIO = errors.New("hosts file i/o failed")

	// ErrPermission is returned when the process lacks the privilege to modify the hosts file
	ErrPermission = errors.New("insufficient privilege for hosts file")

	// ErrCacheFlush is returned when no resolver cache flush mechanism succeeded.
	// Callers log it and continue.
	ErrCacheFlush = errors.New("resolver cache flush failed")
)
