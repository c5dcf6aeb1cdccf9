// Package config loads and validates userctld's configuration: class
// directory, D-Bus surface, enforcement binary, and the ambient logging and
// observability settings.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (USERCTL_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is userctld's static configuration.
type Config struct {
	// ClassDir is the directory scanned for class files.
	ClassDir string `mapstructure:"class_dir" validate:"required" yaml:"class_dir"`

	// ClassExt is the file extension identifying a class file.
	ClassExt string `mapstructure:"class_extension" validate:"required" yaml:"class_extension"`

	// RegistryCapacity bounds the number of classes held in memory at once.
	RegistryCapacity int `mapstructure:"registry_capacity" validate:"required,gt=0" yaml:"registry_capacity"`

	// SystemctlBinary is the service-manager binary invoked by the Enforcer.
	SystemctlBinary string `mapstructure:"systemctl_binary" validate:"required" yaml:"systemctl_binary"`

	// DBus configures the D-Bus RPC surface.
	DBus DBusConfig `mapstructure:"dbus" yaml:"dbus"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics configures the Prometheus metrics HTTP server.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Health configures the liveness/readiness HTTP server.
	Health HealthConfig `mapstructure:"health" yaml:"health"`

	// ShutdownTimeout bounds how long the daemon waits for the ambient HTTP
	// servers to shut down before exiting.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// DBusConfig controls the exported RPC surface's bus identity.
type DBusConfig struct {
	// BusName is the well-known name the daemon requests on the system bus.
	BusName string `mapstructure:"bus_name" validate:"required" yaml:"bus_name"`

	// ObjectPath is the object path the Manager interface is exported at.
	ObjectPath string `mapstructure:"object_path" validate:"required" yaml:"object_path"`

	// SessionBus, when true, connects to the session bus instead of the
	// system bus — used for local development and tests without a running
	// logind/system bus.
	SessionBus bool `mapstructure:"session_bus" yaml:"session_bus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled controls whether the metrics server is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port the metrics endpoint listens on.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// HealthConfig configures the liveness/readiness HTTP server.
type HealthConfig struct {
	// Enabled controls whether the health server is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port the health endpoints listen on.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load reads configuration from configPath (or the default location), layers
// environment overrides on top, applies defaults for anything still unset,
// and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Bind every key explicitly so USERCTL_* variables reach Unmarshal even
	// when no config file is present or the file leaves the key unset.
	for _, key := range []string{
		"class_dir", "class_extension", "registry_capacity", "systemctl_binary",
		"dbus.bus_name", "dbus.object_path", "dbus.session_bus",
		"logging.level", "logging.format", "logging.output",
		"metrics.enabled", "metrics.port", "health.enabled", "health.port",
		"shutdown_timeout",
	} {
		_ = v.BindEnv(key)
	}

	cfg := GetDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("USERCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

// Validate checks cfg against its struct tags using a single validator
// instance, the way the RPC surface's own mutating calls stage-then-commit:
// a config that fails validation never reaches the daemon's startup path.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "userctl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "userctl")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
