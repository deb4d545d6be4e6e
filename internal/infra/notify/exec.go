package notify

import (
	"context"
	"fmt"

	"github.com/edumarques81/stellar-playerswitch/internal/infra/process"
)

// DefaultNotifyBinary is the notifier helper shipped on the device.
const DefaultNotifyBinary = "/opt/dbus_notify"

// ExecNotifier runs a helper binary as `<binary> <kind> <payload>`.
type ExecNotifier struct {
	runner process.Runner
	binary string
}

// NewExecNotifier creates a notifier that runs binary through runner.
func NewExecNotifier(runner process.Runner, binary string) *ExecNotifier {
	if binary == "" {
		binary = DefaultNotifyBinary
	}
	return &ExecNotifier{runner: runner, binary: binary}
}

// Notify runs the helper and waits for it to exit.
func (n *ExecNotifier) Notify(ctx context.Context, kind, payload string) error {
	res, err := n.runner.Run(ctx, n.binary, kind, payload)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s exited with status %d: %s", n.binary, res.ExitCode, res.Output())
	}
	return nil
}
