// Package config loads fileopen configuration from a YAML file, FILEOPEN_*
// environment variables and command-line flags, and validates the result
// against an embedded CUE schema.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// FILEOPEN_LISTENER_MODE=none.
const EnvPrefix = "FILEOPEN"

// Config represents the complete fileopen configuration.
type Config struct {
	Listener ListenerConfig `mapstructure:"listener" json:"listener"`
	Bridge   BridgeConfig   `mapstructure:"bridge" json:"bridge"`
	Notify   NotifyConfig   `mapstructure:"notify" json:"notify"`
	Metrics  MetricsConfig  `mapstructure:"metrics" json:"metrics"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
	Store    StoreConfig    `mapstructure:"store" json:"store"`
	Plugins  PluginsConfig  `mapstructure:"plugins" json:"plugins"`
}

// ListenerConfig selects how open-file signals are handled.
type ListenerConfig struct {
	// Mode is "auto", "native" or "none".
	Mode string `mapstructure:"mode" json:"mode"`
}

// BridgeConfig controls the local IPC endpoint used by the interface layer
// and by secondary invocations.
type BridgeConfig struct {
	// Network is "unix" or "tcp". TCP addresses must be loopback.
	Network string `mapstructure:"network" json:"network"`
	// Address is a socket path for unix, host:port for tcp.
	Address string `mapstructure:"address" json:"address"`
}

// NotifyConfig controls the file-opened push channel.
type NotifyConfig struct {
	// Buffer is the per-consumer event queue length.
	Buffer int `mapstructure:"buffer" json:"buffer"`
}

// MetricsConfig controls Prometheus exposition on the bridge.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// StoreConfig locates the SQLite database behind the sql plugin.
type StoreConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// PluginsConfig lists the capability plugins registered on the command router.
type PluginsConfig struct {
	Enabled []string `mapstructure:"enabled" json:"enabled"`
}

// AllPlugins is the default plugin list.
var AllPlugins = []string{"fs", "clipboard", "shell", "dialog", "sql"}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		Listener: ListenerConfig{Mode: "auto"},
		Bridge: BridgeConfig{
			Network: "unix",
			Address: DefaultSocketPath(),
		},
		Notify:  NotifyConfig{Buffer: 64},
		Metrics: MetricsConfig{Enabled: true},
		Log:     LogConfig{Level: "info", Format: "text"},
		Store:   StoreConfig{Path: filepath.Join(dataDir(), "fileopen.db")},
		Plugins: PluginsConfig{Enabled: append([]string(nil), AllPlugins...)},
	}
}

// SetDefaults registers Default() values on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("listener.mode", d.Listener.Mode)
	v.SetDefault("bridge.network", d.Bridge.Network)
	v.SetDefault("bridge.address", d.Bridge.Address)
	v.SetDefault("notify.buffer", d.Notify.Buffer)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("plugins.enabled", d.Plugins.Enabled)
}

// Load reads configuration into a fresh Config.
//
// When path is empty, fileopen.yaml is looked up in the user config
// directory and then the working directory; a missing file is fine. When
// path is set, the file must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fileopen")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch calls onChange with the reloaded configuration whenever the config
// file backing v changes. Invalid edits are reported through onError and
// otherwise ignored.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			onError(fmt.Errorf("decode config %s: %w", e.Name, err))
			return
		}
		if err := Validate(cfg); err != nil {
			onError(err)
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// ConfigDir returns the directory searched for fileopen.yaml.
func ConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "fileopen")
	}
	return "."
}

// DefaultSocketPath returns the default bridge socket location:
// $XDG_RUNTIME_DIR when set, otherwise the user cache directory.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "fileopen.sock")
	}
	return filepath.Join(dataDir(), "fileopen.sock")
}

func dataDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "fileopen")
}

// checkLoopback rejects TCP bridge addresses reachable from other hosts.
func checkLoopback(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: bridge.address %q: %v", ErrInvalid, address, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: bridge.address %q must be a loopback address", ErrInvalid, address)
	}
	return nil
}
