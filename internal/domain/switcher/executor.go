package switcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/players"
	"github.com/edumarques81/stellar-playerswitch/internal/infra/notify"
	"github.com/edumarques81/stellar-playerswitch/internal/infra/process"
)

const defaultCommandTimeout = 30 * time.Second

// Layout locates the init system's startup slots and the player scripts.
type Layout struct {
	InitDir     string // Directory scanned by the init system, e.g. /etc/init.d
	ScriptDir   string // Directory holding every player's script, e.g. /etc/rc.pure
	SlotPattern string // Glob matching player slots in InitDir, e.g. S95*
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Layout         Layout
	StartPolicy    StartPolicy
	CommandTimeout time.Duration
}

// Executor rewrites the startup slot and starts a player. It must only run
// while the switch lock is held.
type Executor struct {
	runner   process.Runner
	notifier ChangeNotifier
	cfg      ExecutorConfig
}

// NewExecutor creates an executor. notifier may be nil.
func NewExecutor(runner process.Runner, notifier ChangeNotifier, cfg ExecutorConfig) *Executor {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.StartPolicy == "" {
		cfg.StartPolicy = StartStrict
	}
	return &Executor{
		runner:   runner,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Execute stops every running player, replaces the startup slot with the
// entry's script and starts it. Nothing is touched when the script is
// missing. Stop and remove failures are logged only; link and start failures
// fail the switch under StartStrict.
//
// Commands are not cancelled when ctx is, so a disconnecting caller cannot
// leave the slot half rewritten.
func (e *Executor) Execute(ctx context.Context, entry players.Entry) (*ExecutionLog, error) {
	script := filepath.Join(e.cfg.Layout.ScriptDir, entry.Script)
	if _, err := os.Stat(script); err != nil {
		log.Error().Err(err).Str("script", script).Msg("Player script not found")
		return nil, &ScriptNotFoundError{Path: script}
	}

	ctx = context.WithoutCancel(ctx)
	xlog := &ExecutionLog{}

	slots, err := filepath.Glob(filepath.Join(e.cfg.Layout.InitDir, e.cfg.Layout.SlotPattern))
	if err != nil {
		return xlog, fmt.Errorf("invalid slot pattern %q: %w", e.cfg.Layout.SlotPattern, err)
	}

	if len(slots) == 0 {
		log.Info().Msg("No player enabled, nothing to stop")
	}
	for _, slot := range slots {
		e.run(ctx, xlog, StepStop, slot, "stop")
	}
	if len(slots) > 0 {
		e.run(ctx, xlog, StepRemove, "rm", append([]string{"-f"}, slots...)...)
	}

	link := filepath.Join(e.cfg.Layout.InitDir, entry.Script)
	if err := e.check(e.run(ctx, xlog, StepLink, "ln", "-s", script, link)); err != nil {
		return xlog, err
	}

	log.Info().Str("service", entry.Key).Msg("Starting player")
	if err := e.check(e.run(ctx, xlog, StepStart, link, "start")); err != nil {
		return xlog, err
	}

	if e.notifier != nil {
		e.notifier.Dispatch(notify.ServiceChanged, entry.Key)
	}
	return xlog, nil
}

// run executes one command, logs it and appends it to xlog.
func (e *Executor) run(ctx context.Context, xlog *ExecutionLog, step Step, name string, args ...string) StepRecord {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CommandTimeout)
	defer cancel()

	rec := StepRecord{
		Step:    step,
		Command: process.CommandLine(name, args...),
	}

	res, err := e.runner.Run(ctx, name, args...)
	rec.ExitCode = res.ExitCode
	rec.Output = res.Output()
	if err != nil {
		rec.Err = err.Error()
	}
	xlog.Steps = append(xlog.Steps, rec)

	ev := log.Info()
	if !rec.OK() {
		ev = log.Warn()
	}
	ev.Str("step", string(step)).
		Str("command", rec.Command).
		Int("exit", rec.ExitCode).
		Str("output", rec.Output).
		Str("error", rec.Err).
		Msg("Executed")

	return rec
}

// check applies the start policy to a link or start step.
func (e *Executor) check(rec StepRecord) error {
	if rec.OK() {
		return nil
	}
	if e.cfg.StartPolicy == StartTolerant {
		log.Warn().Str("step", string(rec.Step)).Msg("Ignoring failure under tolerant start policy")
		return nil
	}

	sfe := &StartFailedError{
		Step:     rec.Step,
		Command:  rec.Command,
		ExitCode: rec.ExitCode,
		Output:   rec.Output,
	}
	if rec.Err != "" {
		sfe.Err = errors.New(rec.Err)
	}
	return sfe
}
