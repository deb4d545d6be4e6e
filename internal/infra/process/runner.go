// Package process runs OS commands on behalf of the switch coordinator.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Result is the outcome of one command invocation.
type Result struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// OK reports whether the command exited with status zero.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Output returns stdout and stderr joined, trimmed for logging.
func (r Result) Output() string {
	out := strings.TrimSpace(r.Stdout)
	if errOut := strings.TrimSpace(r.Stderr); errOut != "" {
		if out != "" {
			out += "\n"
		}
		out += errOut
	}
	return out
}

// Runner executes a command and reports its exit status and output.
// A non-zero exit is reported through Result.ExitCode with a nil error;
// the error is reserved for commands that could not be run at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Prefix is prepended to every command, e.g. []string{"/usr/bin/sudo"}.
	Prefix []string
}

// NewExecRunner creates a runner. When sudo is non-empty every command is
// run through it.
func NewExecRunner(sudo string) *ExecRunner {
	r := &ExecRunner{}
	if sudo != "" {
		r.Prefix = []string{sudo}
	}
	return r
}

// Run executes name with args and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	argv := make([]string, 0, len(r.Prefix)+len(args)+1)
	argv = append(argv, r.Prefix...)
	argv = append(argv, name)
	argv = append(argv, args...)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Strs("argv", argv).Msg("Executing command")

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 {
			// Killed by a signal (including context cancellation).
			return res, fmt.Errorf("%s terminated: %w", name, err)
		}
		return res, nil
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("failed to run %s: %w", name, err)
	}
}

// CommandLine renders a command for logs and execution records.
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
