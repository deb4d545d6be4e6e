package switcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service_switch.lock")
	lock := NewFileLock(path)

	lease, err := lock.TryAcquire()
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.NotEmpty(t, lease.ID)

	_, err = os.Stat(path)
	require.NoError(t, err, "lock file is created on first use")

	t.Run("held lock is busy in-process", func(t *testing.T) {
		_, err := lock.TryAcquire()
		assert.True(t, errors.Is(err, ErrBusy))
	})

	t.Run("held lock is busy through another handle", func(t *testing.T) {
		// A second FileLock opens its own descriptor, as another process would.
		_, err := NewFileLock(path).TryAcquire()
		assert.True(t, errors.Is(err, ErrBusy))
	})

	lease.Release()
	lease.Release() // idempotent

	again, err := lock.TryAcquire()
	require.NoError(t, err)
	again.Release()

	_, err = os.Stat(path)
	assert.NoError(t, err, "lock file is never deleted")
}

func TestFileLock_UnopenablePath(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "missing", "dir", "switch.lock"))
	_, err := lock.TryAcquire()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBusy))

	// A failed open must not leave the in-process guard held.
	_, err = lock.TryAcquire()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBusy))
}

func TestMemoryLock_SingleWinner(t *testing.T) {
	lock := NewMemoryLock()

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*Lease
		busy    int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			lease, err := lock.TryAcquire()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				busy++
				return
			}
			winners = append(winners, lease)
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, callers-1, busy)

	winners[0].Release()
	lease, err := lock.TryAcquire()
	require.NoError(t, err)
	lease.Release()
}
