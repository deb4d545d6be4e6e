// Package config provides configuration loading for the player switch daemon.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/switcher"
)

// EnvPrefix is the prefix for environment overrides, e.g. PLAYERSWITCH_HTTP_ADDRESS.
const EnvPrefix = "PLAYERSWITCH"

// Config is the root configuration.
type Config struct {
	Debug   bool          `mapstructure:"debug"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Lock    LockConfig    `mapstructure:"lock"`
	Switch  SwitchConfig  `mapstructure:"switch"`
	Status  StatusConfig  `mapstructure:"status"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Process ProcessConfig `mapstructure:"process"`
	History HistoryConfig `mapstructure:"history"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Address        string        `mapstructure:"address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// MaxSocketClients caps concurrent Socket.IO clients from other hosts.
	MaxSocketClients int `mapstructure:"max_socket_clients"`
}

// LockConfig configures the switch lock. An empty Path selects an
// in-process lock.
type LockConfig struct {
	Path string `mapstructure:"path"`
}

// SwitchConfig configures the switch sequence.
type SwitchConfig struct {
	InitDir         string        `mapstructure:"init_dir"`
	ScriptDir       string        `mapstructure:"script_dir"`
	SlotPattern     string        `mapstructure:"slot_pattern"`
	StartPolicy     string        `mapstructure:"start_policy"`
	CommandTimeout  time.Duration `mapstructure:"command_timeout"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
	ConfirmInterval time.Duration `mapstructure:"confirm_interval"`
}

// StatusConfig locates the monitor snapshot and the fallback probes.
type StatusConfig struct {
	File       string        `mapstructure:"file"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	OutputFile string        `mapstructure:"output_file"`
	USBDACPath string        `mapstructure:"usb_dac_path"`
}

// NotifyConfig configures change notifications. Binary runs the legacy
// notifier helper; an empty Binary disables it. Both it and DBus signal
// ServiceChanged, so usually only one is enabled.
type NotifyConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
	DBus    DBusConfig    `mapstructure:"dbus"`
}

// DBusConfig configures the D-Bus signal.
type DBusConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Interface string `mapstructure:"interface"`
}

// ProcessConfig configures subprocess execution.
type ProcessConfig struct {
	// Sudo, when set, prefixes every command, e.g. "sudo -n".
	Sudo string `mapstructure:"sudo"`
}

// HistoryConfig configures the switch history database. An empty Path
// disables history.
type HistoryConfig struct {
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("http.address", ":3001")
	v.SetDefault("http.request_timeout", 60*time.Second)
	v.SetDefault("http.max_socket_clients", 4)

	v.SetDefault("lock.path", "/tmp/service_switch.lock")

	v.SetDefault("switch.init_dir", "/etc/init.d")
	v.SetDefault("switch.script_dir", "/etc/rc.pure")
	v.SetDefault("switch.slot_pattern", "S95*")
	v.SetDefault("switch.start_policy", string(switcher.StartStrict))
	v.SetDefault("switch.command_timeout", 30*time.Second)
	v.SetDefault("switch.confirm_timeout", switcher.DefaultConfirmTimeout)
	v.SetDefault("switch.confirm_interval", switcher.DefaultConfirmInterval)

	v.SetDefault("status.file", "/tmp/system_status.json")
	v.SetDefault("status.max_age", 60*time.Second)
	v.SetDefault("status.output_file", "/etc/output")
	v.SetDefault("status.usb_dac_path", "/sys/class/sound/card1")

	v.SetDefault("notify.binary", "/opt/dbus_notify")
	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("notify.dbus.enabled", false)
	v.SetDefault("notify.dbus.path", "/org/purefox/statusmonitor")
	v.SetDefault("notify.dbus.interface", "org.purefox.StatusMonitor")

	v.SetDefault("process.sudo", "")

	v.SetDefault("history.path", "/var/lib/playerswitch/history.db")
	v.SetDefault("history.max_entries", 1000)
}

// New returns a viper instance with defaults and environment overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the YAML file at path, if any, into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config: decoding defaults: %v", err))
	}
	return cfg
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http.address is required"))
	}
	if c.HTTP.RequestTimeout <= 0 {
		errs = append(errs, errors.New("http.request_timeout must be positive"))
	} else if c.HTTP.RequestTimeout <= c.Switch.ConfirmTimeout {
		errs = append(errs, errors.New("http.request_timeout must exceed switch.confirm_timeout"))
	}
	if c.Switch.InitDir == "" {
		errs = append(errs, errors.New("switch.init_dir is required"))
	}
	if c.Switch.ScriptDir == "" {
		errs = append(errs, errors.New("switch.script_dir is required"))
	}
	if c.Switch.SlotPattern == "" {
		errs = append(errs, errors.New("switch.slot_pattern is required"))
	} else if !strings.ContainsAny(c.Switch.SlotPattern, "*?[") {
		errs = append(errs, fmt.Errorf("switch.slot_pattern %q must be a glob", c.Switch.SlotPattern))
	}
	if _, err := switcher.ParseStartPolicy(c.Switch.StartPolicy); err != nil {
		errs = append(errs, fmt.Errorf("switch.start_policy: %w", err))
	}
	if c.Switch.CommandTimeout <= 0 {
		errs = append(errs, errors.New("switch.command_timeout must be positive"))
	}
	if c.Switch.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("switch.confirm_timeout must be positive"))
	}
	if c.Switch.ConfirmInterval <= 0 {
		errs = append(errs, errors.New("switch.confirm_interval must be positive"))
	} else if c.Switch.ConfirmInterval > c.Switch.ConfirmTimeout {
		errs = append(errs, errors.New("switch.confirm_interval must not exceed switch.confirm_timeout"))
	}
	if c.Status.File == "" {
		errs = append(errs, errors.New("status.file is required"))
	}
	if c.Status.MaxAge < 0 {
		errs = append(errs, errors.New("status.max_age must not be negative"))
	}
	if c.Notify.DBus.Enabled && (c.Notify.DBus.Path == "" || c.Notify.DBus.Interface == "") {
		errs = append(errs, errors.New("notify.dbus.path and notify.dbus.interface are required when D-Bus is enabled"))
	}
	if c.History.MaxEntries < 0 {
		errs = append(errs, errors.New("history.max_entries must not be negative"))
	}

	return errors.Join(errs...)
}
