package session

import (
	"context"
	"sync"
)

// Lease is the handle of an active temporary override. The first
// successful Release restores the hosts file; after that Release is a
// no-op. A failed Release can be retried.
type Lease struct {
	session *Session

	mu       sync.Mutex
	released bool
}

// Release restores the pre-override content
func (l *Lease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return nil
	}
	if err := l.session.Restore(ctx); err != nil {
		return err
	}
	l.released = true
	return nil
}
