package process_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarques81/stellar-playerswitch/internal/infra/process"
)

func TestExecRunner_Run(t *testing.T) {
	r := process.NewExecRunner("")
	ctx := context.Background()

	t.Run("captures stdout", func(t *testing.T) {
		res, err := r.Run(ctx, "sh", "-c", "echo hello")
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.Equal(t, "hello\n", res.Stdout)
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		res, err := r.Run(ctx, "sh", "-c", "echo oops >&2; exit 3")
		require.NoError(t, err)
		assert.False(t, res.OK())
		assert.Equal(t, 3, res.ExitCode)
		assert.Equal(t, "oops", res.Output())
	})

	t.Run("missing binary is an error", func(t *testing.T) {
		res, err := r.Run(ctx, "/nonexistent/binary-for-test")
		require.Error(t, err)
		assert.Equal(t, -1, res.ExitCode)
	})
}

func TestExecRunner_Prefix(t *testing.T) {
	// "env" passes the remaining argv through, standing in for sudo.
	r := process.NewExecRunner("env")
	res, err := r.Run(context.Background(), "sh", "-c", "echo via-prefix")
	require.NoError(t, err)
	assert.Equal(t, "via-prefix\n", res.Stdout)
}

func TestResult_Output(t *testing.T) {
	tests := []struct {
		name string
		res  process.Result
		want string
	}{
		{"empty", process.Result{}, ""},
		{"stdout only", process.Result{Stdout: " a \n"}, "a"},
		{"stderr only", process.Result{Stderr: "b\n"}, "b"},
		{"both", process.Result{Stdout: "a\n", Stderr: "b\n"}, "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Output())
		})
	}
}

func TestFakeRunner(t *testing.T) {
	f := &process.FakeRunner{
		Handler: func(name string, args []string) (process.Result, error) {
			if name == "fail" {
				return process.Result{ExitCode: 1}, errors.New("boom")
			}
			return process.Result{Stdout: "ok"}, nil
		},
	}

	res, err := f.Run(context.Background(), "echo", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Stdout)

	_, err = f.Run(context.Background(), "fail")
	require.Error(t, err)

	assert.Equal(t, []string{"echo a b", "fail"}, f.Lines())
}
