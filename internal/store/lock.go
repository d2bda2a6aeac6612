package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/hyperifyio/dockcounts/internal/report"
)

// Locked serializes load-modify-save cycles over one backend. The mutex
// covers writers in this process; when LockFile is set an advisory file lock
// covers other processes sharing the store.
type Locked struct {
	Backend  Backend
	LockFile string
	// RetryDelay is the polling interval while waiting for the file lock.
	RetryDelay time.Duration

	mu sync.Mutex
}

// Update loads the store, passes it to fn and saves the result, holding the
// lock for the whole cycle. An error from fn aborts without saving.
func (l *Locked) Update(ctx context.Context, fn func(report.Store) (report.Store, error)) (report.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.LockFile != "" {
		fl := flock.New(l.LockFile)
		delay := l.RetryDelay
		if delay <= 0 {
			delay = 100 * time.Millisecond
		}
		ok, err := fl.TryLockContext(ctx, delay)
		if err != nil {
			return report.Store{}, fmt.Errorf("lock %s: %w", l.LockFile, err)
		}
		if !ok {
			return report.Store{}, fmt.Errorf("lock %s: not acquired", l.LockFile)
		}
		defer fl.Unlock()
	}

	next, err := fn(l.Backend.Load(ctx))
	if err != nil {
		return report.Store{}, err
	}
	if err := l.Backend.Save(ctx, next); err != nil {
		return report.Store{}, err
	}
	return next, nil
}
