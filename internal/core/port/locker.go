package port

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("lock not acquired")

// Locker provides mutual exclusion across service instances. Lock blocks
// until key is held, ctx is done or the implementation's wait budget runs
// out (ErrLockTimeout). The returned release func must be called exactly
// once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}
