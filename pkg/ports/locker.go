package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It allows the workspace manager to coordinate model access across replicas.
type DistributedLocker interface {
	// Lock blocks until the lock for key (a model name) is acquired or ctx is done.
	// The lock expires after ttl if never released.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
