package attempt

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultWindow is how long a count survives after its last write.
	DefaultWindow = 15 * time.Minute
	// DefaultMaxEntries bounds the number of identities tracked in process.
	DefaultMaxEntries = 100
	// DefaultThreshold is the count at which an identity is considered over the limit.
	DefaultThreshold = 5
)

// ErrBackendUnavailable wraps failures of a remote counter backend.
var ErrBackendUnavailable = errors.New("attempt backend unavailable")

// Limiter counts consecutive failed authentications per identity.
//
// RecordFailure must be atomic per identity: concurrent calls for the same
// identity never lose an increment.
type Limiter interface {
	RecordFailure(ctx context.Context, identity string) error
	Evict(ctx context.Context, identity string) error
	HasExceededLimit(ctx context.Context, identity string) (bool, error)
	Attempts(ctx context.Context, identity string) (int, error)
}
