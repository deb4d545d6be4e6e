package switcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/players"
)

// Config holds the confirmation policy.
type Config struct {
	ConfirmTimeout  time.Duration
	ConfirmInterval time.Duration
}

// Service switches the active player. At most one switch runs at a time;
// concurrent requests fail fast with ErrBusy.
type Service struct {
	registry  *players.Registry
	locker    Locker
	executor  *Executor
	poller    *Poller
	cfg       Config
	observers []Observer
}

// NewService creates the switch coordinator.
func NewService(registry *players.Registry, locker Locker, executor *Executor, poller *Poller, cfg Config, observers ...Observer) *Service {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = DefaultConfirmInterval
	}
	return &Service{
		registry:  registry,
		locker:    locker,
		executor:  executor,
		poller:    poller,
		cfg:       cfg,
		observers: observers,
	}
}

// Registry returns the player registry.
func (s *Service) Registry() *players.Registry {
	return s.registry
}

// Switch makes key the active player. Unknown keys are rejected before the
// lock is touched. Once acquired, the lock is released on every return path.
// A switch whose commands succeeded but which the status monitor did not
// confirm in time is still a success, with Confirmed false.
func (s *Service) Switch(ctx context.Context, key string) (res *Result, err error) {
	rec := Record{
		ID:        uuid.NewString(),
		Service:   key,
		StartedAt: time.Now(),
	}
	defer func() {
		// Record a panicking switch as an error, then let it propagate to
		// the transport's recovery.
		p := recover()
		if p != nil {
			res, err = nil, fmt.Errorf("switch to %s panicked: %v", key, p)
		}

		rec.Duration = time.Since(rec.StartedAt)
		rec.Outcome = OutcomeOf(res, err)
		if err != nil {
			rec.Message = err.Error()
		} else if res != nil {
			rec.Confirmed = res.Confirmed
			rec.Message = res.Message
		}
		s.observe(context.WithoutCancel(ctx), rec)

		if p != nil {
			panic(p)
		}
	}()

	entry, err := s.registry.Resolve(key)
	if err != nil {
		log.Warn().Str("service", key).Msg("Rejected switch to unknown player")
		return nil, err
	}

	log.Info().Str("service", key).Str("switch", rec.ID).Msg("Request to start player")

	lease, err := s.locker.TryAcquire()
	if err != nil {
		log.Warn().Err(err).Str("service", key).Msg("Switch lock not acquired")
		return nil, err
	}
	defer lease.Release()

	xlog, err := s.executor.Execute(ctx, entry)
	if xlog != nil {
		rec.Steps = xlog.Steps
	}
	if err != nil {
		log.Error().Err(err).Str("service", key).Msg("Switch failed")
		return nil, err
	}

	confirmed := s.poller.Await(ctx, key, s.cfg.ConfirmTimeout, s.cfg.ConfirmInterval)

	return &Result{
		Status:    StatusSuccess,
		Message:   "Successfully started " + key,
		Confirmed: confirmed,
	}, nil
}

func (s *Service) observe(ctx context.Context, rec Record) {
	for _, o := range s.observers {
		o.Observe(ctx, rec)
	}
}
