package ports

import (
	"context"
	"time"
)

// Lease is a lock held through a DistributedLocker. The locker keeps it alive
// until Release. Done is closed when the lock is lost before that, for example
// because the backend expired it while renewals were failing.
type Lease interface {
	Done() <-chan struct{}
	Release(ctx context.Context) error
}

// DistributedLocker provides mutual exclusion across processes.
// The program loader uses it so that only one loaded program environment is
// active per key at a time, even when several hosts share the same backend.
type DistributedLocker interface {
	// Lock blocks until key is held, ctx is done, or the backend fails.
	// The lock expires ttl after the holder stops renewing it.
	Lock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
