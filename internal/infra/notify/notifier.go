// Package notify broadcasts player change events to other listeners on the
// device so they refresh without waiting for their own polling interval.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"vawter.tech/stopper"
)

// ServiceChanged is emitted after a new player was started. The payload is
// the player key.
const ServiceChanged = "ServiceChanged"

const defaultNotifyTimeout = 5 * time.Second

// Notifier delivers one event.
type Notifier interface {
	Notify(ctx context.Context, kind, payload string) error
}

// Named is a Notifier with a name for logs.
type Named struct {
	Name string
	Notifier
}

// Dispatcher fans events out to notifiers on background goroutines.
// Failures are logged and never reported to the caller.
type Dispatcher struct {
	sctx    *stopper.Context
	timeout time.Duration

	mu        sync.RWMutex
	notifiers []Named
}

// NewDispatcher creates a dispatcher whose goroutines live until ctx is done
// or Close is called. A zero timeout uses a 5s per-notifier limit.
func NewDispatcher(ctx context.Context, timeout time.Duration, notifiers ...Named) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Dispatcher{
		sctx:      stopper.WithContext(ctx),
		notifiers: notifiers,
		timeout:   timeout,
	}
}

// Add registers a notifier for subsequent events.
func (d *Dispatcher) Add(n Named) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, n)
}

// Dispatch sends the event to every notifier and returns immediately.
func (d *Dispatcher) Dispatch(kind, payload string) {
	if d.sctx.IsStopping() {
		log.Debug().Str("kind", kind).Msg("Dispatcher stopping, dropping event")
		return
	}

	d.mu.RLock()
	notifiers := append([]Named(nil), d.notifiers...)
	d.mu.RUnlock()

	for _, n := range notifiers {
		n := n
		d.sctx.Go(func(sctx *stopper.Context) error {
			ctx, cancel := context.WithTimeout(sctx, d.timeout)
			defer cancel()

			if err := n.Notify(ctx, kind, payload); err != nil {
				log.Warn().Err(err).
					Str("notifier", n.Name).
					Str("kind", kind).
					Str("payload", payload).
					Msg("Notification failed")
				return nil
			}
			log.Debug().Str("notifier", n.Name).Str("kind", kind).Str("payload", payload).Msg("Notification sent")
			return nil
		})
	}
}

// Close stops accepting events and waits for in-flight notifications,
// cancelling them after grace.
func (d *Dispatcher) Close(grace time.Duration) error {
	d.sctx.Stop(grace)
	return d.sctx.Wait()
}
