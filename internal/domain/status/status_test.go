package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/renameio/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/players"
	"github.com/edumarques81/stellar-playerswitch/internal/infra/process"
)

const fullSnapshot = `{
  "active_service": "mpd",
  "alsa_state": "i2s",
  "usb_dac": false,
  "volume": "75%",
  "muted": false,
  "volume_control_available": true,
  "mute_control_available": false,
  "timestamp": 1700000000,
  "source": "dbus_monitor"
}`

func writeSnapshot(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "system_status.json")
	require.NoError(t, renameio.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReader_Read(t *testing.T) {
	t.Run("complete snapshot", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), fullSnapshot)
		snap, ok := NewReader(path, time.Minute).Read()
		require.True(t, ok)
		assert.True(t, snap.Complete())
		assert.Equal(t, "mpd", snap.ActiveService)
		assert.Equal(t, AlsaI2S, snap.AlsaState)
		assert.Equal(t, "75%", snap.Volume)
		assert.Equal(t, int64(1700000000), snap.Timestamp)
		assert.False(t, snap.MuteControlAvailable)
	})

	t.Run("missing file", func(t *testing.T) {
		_, ok := NewReader(filepath.Join(t.TempDir(), "absent.json"), time.Minute).Read()
		assert.False(t, ok)
	})

	t.Run("malformed content", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), `{"active_service": "mpd",`)
		_, ok := NewReader(path, time.Minute).Read()
		assert.False(t, ok)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), "")
		_, ok := NewReader(path, time.Minute).Read()
		assert.False(t, ok)
	})

	t.Run("partial snapshot records missing fields", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), `{"active_service": "spotify"}`)
		snap, ok := NewReader(path, time.Minute).Read()
		require.True(t, ok)
		assert.False(t, snap.Complete())
		assert.True(t, snap.HasActiveService())
		assert.Equal(t, "spotify", snap.ActiveService)
		assert.ElementsMatch(t, []string{"alsa_state", "usb_dac", "volume", "muted"}, snap.Missing)
	})

	t.Run("absent active service", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), `{"alsa_state": "usb"}`)
		snap, ok := NewReader(path, time.Minute).Read()
		require.True(t, ok)
		assert.False(t, snap.HasActiveService())
	})

	t.Run("stale snapshot", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), fullSnapshot)
		old := time.Now().Add(-2 * time.Minute)
		require.NoError(t, os.Chtimes(path, old, old))

		_, ok := NewReader(path, time.Minute).Read()
		assert.False(t, ok)

		_, ok = NewReader(path, 0).Read()
		assert.True(t, ok, "zero max age disables the staleness check")
	})

	t.Run("unknown alsa state", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), `{"alsa_state": "hdmi"}`)
		snap, ok := NewReader(path, time.Minute).Read()
		require.True(t, ok)
		assert.Equal(t, AlsaUnknown, snap.AlsaState)
	})
}

func newTestService(t *testing.T, snapshotPath string, ps string) (*Service, *process.FakeRunner) {
	t.Helper()
	dir := t.TempDir()
	runner := &process.FakeRunner{
		Handler: func(name string, args []string) (process.Result, error) {
			return process.Result{Stdout: ps}, nil
		},
	}
	outputFile := filepath.Join(dir, "output")
	require.NoError(t, os.WriteFile(outputFile, []byte("usb\n"), 0o644))
	paths := Paths{
		OutputFile: outputFile,
		USBDACPath: filepath.Join(dir, "card1"),
	}
	return NewService(NewReader(snapshotPath, time.Minute), runner, players.Default(), paths), runner
}

func TestService_Current(t *testing.T) {
	ctx := context.Background()

	t.Run("uses monitor snapshot when complete", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), fullSnapshot)
		svc, runner := newTestService(t, path, "")

		snap := svc.Current(ctx)
		assert.Equal(t, SourceMonitor, snap.Source)
		assert.Equal(t, "mpd", snap.ActiveService)
		assert.True(t, snap.VolumeControlAvailable)
		assert.Empty(t, runner.Calls(), "fallback must not run")
	})

	t.Run("usb without dac disables controls", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), `{
			"active_service": "naa", "alsa_state": "usb", "usb_dac": false,
			"volume": "40%", "muted": true,
			"volume_control_available": true, "mute_control_available": true}`)
		svc, _ := newTestService(t, path, "")

		snap := svc.Current(ctx)
		assert.Equal(t, "100%", snap.Volume)
		assert.False(t, snap.Muted)
		assert.False(t, snap.VolumeControlAvailable)
		assert.False(t, snap.MuteControlAvailable)
	})

	t.Run("defaults control availability when not reported", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), `{
			"active_service": "naa", "alsa_state": "i2s", "usb_dac": false,
			"volume": "40%", "muted": false}`)
		svc, _ := newTestService(t, path, "")

		snap := svc.Current(ctx)
		assert.True(t, snap.VolumeControlAvailable)
		assert.True(t, snap.MuteControlAvailable)
	})

	t.Run("falls back to process table", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "absent.json")
		svc, runner := newTestService(t, missing, "COMMAND\nsystemd\nlibrespot\nmpd\n")

		snap := svc.Current(ctx)
		assert.Equal(t, SourceFallback, snap.Source)
		assert.Equal(t, "spotify", snap.ActiveService)
		assert.Equal(t, AlsaUSB, snap.AlsaState)
		assert.False(t, snap.USBDAC)
		assert.Equal(t, "100%", snap.Volume)
		assert.Equal(t, []string{"ps -eo comm"}, runner.Lines())
	})

	t.Run("falls back when snapshot is incomplete", func(t *testing.T) {
		path := writeSnapshot(t, t.TempDir(), `{"active_service": "mpd"}`)
		svc, _ := newTestService(t, path, "squeezelite\n")

		snap := svc.Current(ctx)
		assert.Equal(t, SourceFallback, snap.Source)
		assert.Equal(t, "lms", snap.ActiveService)
	})

	t.Run("no player running", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "absent.json")
		svc, _ := newTestService(t, missing, "init\nsshd\n")

		assert.Equal(t, "", svc.Current(ctx).ActiveService)
	})
}
