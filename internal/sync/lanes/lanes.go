// Package lanes sequences work per entity key. A lane lock makes messages for
// the same (entityType, entityId) run one at a time across workers and, with
// the Redis implementation, across processes.
package lanes

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a lane lock could not be acquired before the
// context expired.
var ErrLockTimeout = errors.New("lane lock not acquired")

// Release gives a lane back. It is safe to call once.
type Release func(ctx context.Context) error

// Locker grants exclusive access to a lane key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// PendingTracker counts upserts for a key that are waiting in the retry path.
// Deletes consult it so they run after earlier creates and updates settle.
type PendingTracker interface {
	Add(ctx context.Context, key string) error
	Done(ctx context.Context, key string) error
	Pending(ctx context.Context, key string) (int64, error)
}
