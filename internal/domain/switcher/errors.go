package switcher

import (
	"errors"
	"fmt"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/players"
)

// Common errors returned by Switch.
var (
	// ErrBusy indicates another switch holds the lock.
	ErrBusy = errors.New("service switch already in progress, please wait")

	// ErrScriptNotFound indicates the target startup script is absent.
	ErrScriptNotFound = errors.New("player script not found")

	// ErrStartFailed indicates the new player could not be linked or started.
	ErrStartFailed = errors.New("player failed to start")
)

// ScriptNotFoundError reports the missing startup script path.
type ScriptNotFoundError struct {
	Path string
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("Player script not found: %s", e.Path)
}

// Unwrap returns ErrScriptNotFound.
func (e *ScriptNotFoundError) Unwrap() error {
	return ErrScriptNotFound
}

// StartFailedError reports the step that prevented the player from starting.
type StartFailedError struct {
	Step     Step
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *StartFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Failed to start player: %s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("Failed to start player: %s exited with status %d", e.Command, e.ExitCode)
}

// Is matches ErrStartFailed.
func (e *StartFailedError) Is(target error) bool {
	return target == ErrStartFailed
}

// Unwrap returns the underlying runner error, if any.
func (e *StartFailedError) Unwrap() error {
	return e.Err
}

// OutcomeOf classifies a Switch return for logs, metrics and history.
func OutcomeOf(res *Result, err error) Outcome {
	switch {
	case err == nil && res != nil && res.Confirmed:
		return OutcomeSuccess
	case err == nil:
		return OutcomeUnconfirmed
	case errors.Is(err, players.ErrUnknownPlayer):
		return OutcomeInvalid
	case errors.Is(err, ErrBusy):
		return OutcomeBusy
	case errors.Is(err, ErrScriptNotFound):
		return OutcomeMissingScript
	case errors.Is(err, ErrStartFailed):
		return OutcomeStartFailed
	default:
		return OutcomeError
	}
}
