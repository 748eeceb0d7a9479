package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock is still held elsewhere once the
// caller stops waiting.
var ErrNotAcquired = errors.New("lock not acquired")

// ReleaseFunc releases a held lock. Releasing an expired or foreign lock is a no-op.
type ReleaseFunc func(ctx context.Context) error

// Locker serializes work on a key across processes.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (ReleaseFunc, bool, error)
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}
