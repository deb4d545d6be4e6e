// Package switcher coordinates switching the active player service: it holds
// the switch lock, rewrites the startup slot, starts the new player and waits
// for the status monitor to confirm it.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/status"
)

// ResultStatus is the terminal status reported to callers.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// Result is the response to a switch request.
type Result struct {
	Status    ResultStatus `json:"status"`
	Message   string       `json:"message"`
	Confirmed bool         `json:"confirmed"`
}

// BusyMessage is shown to callers that lose the race for the switch lock.
const BusyMessage = "Service switch already in progress, please wait"

// ErrorResult converts a switch error into a response.
func ErrorResult(err error) Result {
	msg := err.Error()
	if errors.Is(err, ErrBusy) {
		msg = BusyMessage
	}
	return Result{
		Status:  StatusError,
		Message: msg,
	}
}

// Outcome labels a switch attempt.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeUnconfirmed   Outcome = "unconfirmed"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeBusy          Outcome = "busy"
	OutcomeMissingScript Outcome = "missing_script"
	OutcomeStartFailed   Outcome = "start_failed"
	OutcomeError         Outcome = "error"
)

// Step names one command of the switch sequence.
type Step string

const (
	StepStop   Step = "stop"
	StepRemove Step = "remove"
	StepLink   Step = "link"
	StepStart  Step = "start"
)

// StepRecord is the logged result of one command.
type StepRecord struct {
	Step     Step   `json:"step"`
	Command  string `json:"command"`
	ExitCode int    `json:"exitCode"`
	Output   string `json:"output,omitempty"`
	Err      string `json:"error,omitempty"`
}

// OK reports whether the command ran and exited with status zero.
func (r StepRecord) OK() bool {
	return r.Err == "" && r.ExitCode == 0
}

// ExecutionLog collects the commands run during one switch.
type ExecutionLog struct {
	Steps []StepRecord `json:"steps"`
}

// Record describes one switch attempt after it finished.
type Record struct {
	ID        string        `json:"id"`
	Service   string        `json:"service"`
	Outcome   Outcome       `json:"outcome"`
	Confirmed bool          `json:"confirmed"`
	Message   string        `json:"message"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Steps     []StepRecord  `json:"steps,omitempty"`
}

// Observer is told about every finished switch attempt.
type Observer interface {
	Observe(ctx context.Context, rec Record)
}

// ChangeNotifier dispatches change events without blocking the caller.
type ChangeNotifier interface {
	Dispatch(kind, payload string)
}

// SnapshotReader reads the externally published status snapshot.
type SnapshotReader interface {
	Read() (status.Snapshot, bool)
	Path() string
}

// StartPolicy decides whether link or start failures fail the switch.
type StartPolicy string

const (
	// StartStrict fails the switch when linking or starting the player fails.
	StartStrict StartPolicy = "strict"
	// StartTolerant logs link and start failures and reports success anyway.
	// Some players detach and return non-zero from their start script.
	StartTolerant StartPolicy = "tolerant"
)

// ParseStartPolicy validates a policy name.
func ParseStartPolicy(s string) (StartPolicy, error) {
	switch p := StartPolicy(s); p {
	case StartStrict, StartTolerant:
		return p, nil
	case "":
		return StartStrict, nil
	default:
		return "", fmt.Errorf("unknown start policy %q", s)
	}
}
