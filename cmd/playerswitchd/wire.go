package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playerswitch/internal/config"
	"github.com/edumarques81/stellar-playerswitch/internal/domain/players"
	"github.com/edumarques81/stellar-playerswitch/internal/domain/status"
	"github.com/edumarques81/stellar-playerswitch/internal/domain/switcher"
	"github.com/edumarques81/stellar-playerswitch/internal/infra/history"
	"github.com/edumarques81/stellar-playerswitch/internal/infra/notify"
	"github.com/edumarques81/stellar-playerswitch/internal/infra/process"
	"github.com/edumarques81/stellar-playerswitch/internal/metrics"
)

const notifyGrace = 2 * time.Second

// daemon holds the wired services shared by every command.
type daemon struct {
	registry   *players.Registry
	runner     process.Runner
	status     *status.Service
	switcher   *switcher.Service
	dispatcher *notify.Dispatcher
	history    *history.Store
	metrics    *metrics.SwitchMetrics
}

type daemonOptions struct {
	// runner replaces the exec runner, for tests.
	runner process.Runner
	// dbusConnect replaces the system bus connection, for tests.
	dbusConnect func() (notify.SignalEmitter, error)
}

func newDaemon(ctx context.Context, cfg *config.Config, opts daemonOptions) (*daemon, error) {
	d := &daemon{
		registry: players.Default(),
		runner:   newRunner(cfg, opts),
		metrics:  metrics.New(),
	}
	d.status = newStatusService(cfg, d.runner, d.registry)
	reader := d.status.Reader()

	// Fallible steps run before the dispatcher starts, so errors leave
	// nothing to stop.
	policy, err := switcher.ParseStartPolicy(cfg.Switch.StartPolicy)
	if err != nil {
		return nil, err
	}

	observers := []switcher.Observer{d.metrics}
	if cfg.History.Path != "" {
		d.history = history.NewStore(cfg.History.Path, cfg.History.MaxEntries)
		if err := d.history.Open(); err != nil {
			return nil, fmt.Errorf("switch history: %w", err)
		}
		observers = append(observers, d.history)
	}

	d.dispatcher = notify.NewDispatcher(ctx, cfg.Notify.Timeout)
	if cfg.Notify.Binary != "" {
		d.dispatcher.Add(notify.Named{Name: "exec", Notifier: notify.NewExecNotifier(d.runner, cfg.Notify.Binary)})
	}
	if cfg.Notify.DBus.Enabled {
		var n *notify.DBusNotifier
		if opts.dbusConnect != nil {
			n = notify.NewDBusNotifierWith(cfg.Notify.DBus.Path, cfg.Notify.DBus.Interface, opts.dbusConnect)
		} else {
			n = notify.NewDBusNotifier(cfg.Notify.DBus.Path, cfg.Notify.DBus.Interface)
		}
		d.dispatcher.Add(notify.Named{Name: "dbus", Notifier: n})
	}

	var locker switcher.Locker
	if cfg.Lock.Path != "" {
		locker = switcher.NewFileLock(cfg.Lock.Path)
	} else {
		log.Warn().Msg("No lock path configured, switches are only serialized within this process")
		locker = switcher.NewMemoryLock()
	}

	executor := switcher.NewExecutor(d.runner, d.dispatcher, switcher.ExecutorConfig{
		Layout: switcher.Layout{
			InitDir:     cfg.Switch.InitDir,
			ScriptDir:   cfg.Switch.ScriptDir,
			SlotPattern: cfg.Switch.SlotPattern,
		},
		StartPolicy:    policy,
		CommandTimeout: cfg.Switch.CommandTimeout,
	})

	d.switcher = switcher.NewService(d.registry, locker, executor, switcher.NewPoller(reader), switcher.Config{
		ConfirmTimeout:  cfg.Switch.ConfirmTimeout,
		ConfirmInterval: cfg.Switch.ConfirmInterval,
	}, observers...)

	return d, nil
}

func newRunner(cfg *config.Config, opts daemonOptions) process.Runner {
	if opts.runner != nil {
		return opts.runner
	}
	return process.NewExecRunner(cfg.Process.Sudo)
}

// newStatusService builds the status reader on its own, for commands that
// only read.
func newStatusService(cfg *config.Config, runner process.Runner, registry *players.Registry) *status.Service {
	reader := status.NewReader(cfg.Status.File, cfg.Status.MaxAge)
	return status.NewService(reader, runner, registry, status.Paths{
		OutputFile: cfg.Status.OutputFile,
		USBDACPath: cfg.Status.USBDACPath,
	})
}

// Close flushes pending notifications and closes the history database.
func (d *daemon) Close() {
	if err := d.dispatcher.Close(notifyGrace); err != nil {
		log.Warn().Err(err).Msg("Notifications did not finish cleanly")
	}
	if d.history != nil {
		if err := d.history.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close switch history")
		}
	}
}
