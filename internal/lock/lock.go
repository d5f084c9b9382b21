// Package lock serializes writers per ticket.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the key stays held for longer than the wait budget.
var ErrTimeout = errors.New("lock wait timed out")

// Release gives the lock back. Calling it more than once is a no-op.
type Release func()

// Locker grants exclusive access to a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// TicketKey namespaces ticket lock keys.
func TicketKey(ticketID string) string {
	return "ticket:" + ticketID
}

func withWait(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

// waitErr reports the parent's error when the caller gave up, ErrTimeout otherwise.
func waitErr(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrTimeout
}
