package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes turns of the same session across replicas
// sharing a SessionStore. In-process serialization is the session manager's job.
type DistributedLocker interface {
	// Lock waits until key is free or ctx is done. A holder that never
	// unlocks loses the lock after ttl.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
