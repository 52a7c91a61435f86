package provision

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 100 * time.Millisecond

// acquireLock takes the installation lock, waiting up to LockTimeout.
func (o *Orchestrator) acquireLock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(o.Layout.Root, 0o755); err != nil {
		return nil, fmt.Errorf("prepare install dir: %w", err)
	}

	fl := flock.New(o.Layout.LockFile)
	var (
		locked bool
		err    error
	)
	if o.LockTimeout <= 0 {
		locked, err = fl.TryLock()
	} else {
		lctx, cancel := context.WithTimeout(ctx, o.LockTimeout)
		locked, err = fl.TryLockContext(lctx, lockRetryDelay)
		cancel()
		if err != nil && ctx.Err() == nil {
			err = nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, o.Layout.LockFile)
	}
	return func() { _ = fl.Unlock() }, nil
}
