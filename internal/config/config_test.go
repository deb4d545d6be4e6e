package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()

	assert.Equal(t, ":3001", cfg.HTTP.Address)
	assert.Equal(t, "/tmp/service_switch.lock", cfg.Lock.Path)
	assert.Equal(t, "/etc/init.d", cfg.Switch.InitDir)
	assert.Equal(t, "/etc/rc.pure", cfg.Switch.ScriptDir)
	assert.Equal(t, "S95*", cfg.Switch.SlotPattern)
	assert.Equal(t, "strict", cfg.Switch.StartPolicy)
	assert.Equal(t, 30*time.Second, cfg.Switch.CommandTimeout)
	assert.Equal(t, 10*time.Second, cfg.Switch.ConfirmTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Switch.ConfirmInterval)
	assert.Equal(t, "/tmp/system_status.json", cfg.Status.File)
	assert.Equal(t, 60*time.Second, cfg.Status.MaxAge)
	assert.Equal(t, "/opt/dbus_notify", cfg.Notify.Binary)
	assert.False(t, cfg.Notify.DBus.Enabled)
	assert.Equal(t, "org.purefox.StatusMonitor", cfg.Notify.DBus.Interface)
	assert.Empty(t, cfg.Process.Sudo)

	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		yamlContent string
		check       func(t *testing.T, cfg *Config)
		wantErr     string
	}{
		{
			name: "overrides",
			yamlContent: `http:
  address: "127.0.0.1:8080"
switch:
  start_policy: tolerant
  confirm_timeout: 15s
  confirm_interval: 250ms
process:
  sudo: "sudo -n"
lock:
  path: ""`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Address)
				assert.Equal(t, "tolerant", cfg.Switch.StartPolicy)
				assert.Equal(t, 15*time.Second, cfg.Switch.ConfirmTimeout)
				assert.Equal(t, 250*time.Millisecond, cfg.Switch.ConfirmInterval)
				assert.Equal(t, "sudo -n", cfg.Process.Sudo)
				assert.Empty(t, cfg.Lock.Path)
				assert.Equal(t, "/etc/init.d", cfg.Switch.InitDir, "unset keys keep defaults")
			},
		},
		{
			name:        "empty file keeps defaults",
			yamlContent: ``,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "unknown start policy",
			yamlContent: `switch:
  start_policy: lenient`,
			wantErr: "switch.start_policy",
		},
		{
			name: "interval longer than timeout",
			yamlContent: `switch:
  confirm_timeout: 1s
  confirm_interval: 2s`,
			wantErr: "confirm_interval",
		},
		{
			name: "slot pattern without glob",
			yamlContent: `switch:
  slot_pattern: S95mpd`,
			wantErr: "slot_pattern",
		},
		{
			name:        "malformed yaml",
			yamlContent: "switch: [",
			wantErr:     "failed to read config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "playerswitch.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yamlContent), 0o600))

			cfg, err := Load(New(), path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/service_switch.lock", cfg.Lock.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PLAYERSWITCH_HTTP_ADDRESS", ":9000")
	t.Setenv("PLAYERSWITCH_SWITCH_START_POLICY", "tolerant")
	t.Setenv("PLAYERSWITCH_STATUS_MAX_AGE", "2m")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Address)
	assert.Equal(t, "tolerant", cfg.Switch.StartPolicy)
	assert.Equal(t, 2*time.Minute, cfg.Status.MaxAge)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.HTTP.Address = ""
	cfg.Switch.CommandTimeout = 0
	cfg.Notify.DBus.Enabled = true
	cfg.Notify.DBus.Interface = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.address")
	assert.Contains(t, err.Error(), "command_timeout")
	assert.Contains(t, err.Error(), "notify.dbus")

	cfg = Default()
	cfg.Notify.DBus.Interface = ""
	assert.NoError(t, cfg.Validate(), "D-Bus settings only matter when enabled")

	cfg = Default()
	cfg.HTTP.RequestTimeout = cfg.Switch.ConfirmTimeout
	assert.ErrorContains(t, cfg.Validate(), "request_timeout")
}
