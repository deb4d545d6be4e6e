package switcher

import (
	"fmt"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Locker hands out the single switch lock. TryAcquire never blocks: when the
// lock is held it returns ErrBusy.
type Locker interface {
	TryAcquire() (*Lease, error)
}

// Lease is a held switch lock. Release is safe to call more than once.
type Lease struct {
	ID      string
	once    sync.Once
	release func() error
}

func newLease(release func() error) *Lease {
	l := &Lease{
		ID:      uuid.NewString(),
		release: release,
	}
	log.Debug().Str("lease", l.ID).Msg("Lock acquired")
	return l
}

// Release frees the lock.
func (l *Lease) Release() {
	l.once.Do(func() {
		if err := l.release(); err != nil {
			log.Error().Err(err).Str("lease", l.ID).Msg("Failed to release lock")
			return
		}
		log.Debug().Str("lease", l.ID).Msg("Lock released")
	})
}

// FileLock is an exclusive flock(2) on a fixed path, also guarding against
// callers inside this process. The file is created on first use and left in
// place afterwards.
type FileLock struct {
	mu   sync.Mutex
	path string
}

// NewFileLock creates a lock on path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file path.
func (f *FileLock) Path() string {
	return f.path
}

// TryAcquire takes the lock or returns ErrBusy.
func (f *FileLock) TryAcquire() (*Lease, error) {
	if !f.mu.TryLock() {
		return nil, ErrBusy
	}

	fl := flock.New(f.path)
	locked, err := fl.TryLock()
	if err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("cannot open lock file %s: %w", f.path, err)
	}
	if !locked {
		f.mu.Unlock()
		return nil, ErrBusy
	}

	return newLease(func() error {
		defer f.mu.Unlock()
		return fl.Unlock()
	}), nil
}

// MemoryLock is an in-process switch lock.
type MemoryLock struct {
	mu sync.Mutex
}

// NewMemoryLock creates an in-process lock.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{}
}

// TryAcquire takes the lock or returns ErrBusy.
func (m *MemoryLock) TryAcquire() (*Lease, error) {
	if !m.mu.TryLock() {
		return nil, ErrBusy
	}
	return newLease(func() error {
		m.mu.Unlock()
		return nil
	}), nil
}
