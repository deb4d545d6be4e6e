package switcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Default confirmation policy: 20 reads, 500ms apart.
const (
	DefaultConfirmInterval = 500 * time.Millisecond
	DefaultConfirmTimeout  = 10 * time.Second
)

// Poller waits for the status snapshot to report a given active service.
type Poller struct {
	reader SnapshotReader
}

// NewPoller creates a poller over reader.
func NewPoller(reader SnapshotReader) *Poller {
	return &Poller{reader: reader}
}

// Await reads the snapshot every interval, and whenever the snapshot file is
// written, until its active_service equals target. It returns false once
// timeout elapses or ctx is done. Unusable snapshots count as not confirmed.
func (p *Poller) Await(ctx context.Context, target string, timeout, interval time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	if interval <= 0 {
		interval = DefaultConfirmInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	changed := p.watch(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if p.confirmed(target) {
			log.Info().Str("service", target).Int("attempt", attempt).Msg("Player confirmed by status monitor")
			return true
		}

		select {
		case <-ctx.Done():
			log.Warn().
				Str("service", target).
				Dur("timeout", timeout).
				Int("attempts", attempt).
				Msg("Player not confirmed by status monitor")
			return false
		case <-ticker.C:
		case <-changed:
		}
	}
}

func (p *Poller) confirmed(target string) bool {
	snap, ok := p.reader.Read()
	return ok && snap.HasActiveService() && snap.ActiveService == target
}

// watch signals on the returned channel when the snapshot file is written.
// It returns nil, which never fires, when the directory cannot be watched.
func (p *Poller) watch(ctx context.Context) <-chan struct{} {
	path := filepath.Clean(p.reader.Path())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Debug().Err(err).Msg("Snapshot watcher unavailable, polling only")
		return nil
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		log.Debug().Err(err).Str("file", path).Msg("Cannot watch snapshot directory, polling only")
		return nil
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return ch
}
