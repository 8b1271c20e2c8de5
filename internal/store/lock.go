package store

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another process already owns the data directory.
var ErrLocked = errors.New("store is locked by another process")

// Lock guards a data directory so a single server process writes to it.
type Lock struct {
	lock *flock.Flock
}

// AcquireLock takes an exclusive, non-blocking lock on path.
func AcquireLock(path string) (*Lock, error) {
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Lock{lock: l}, nil
}

// Release unlocks the data directory.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
