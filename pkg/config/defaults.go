package config

import (
	"strings"
	"time"

	"github.com/dylangardner/userctl/pkg/enforcer"
)

// ApplyDefaults fills any unset fields with the daemon's default values.
// Zero values (0, "", false) are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyCoreDefaults(cfg)
	applyDBusDefaults(&cfg.DBus)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyHealthDefaults(&cfg.Health)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func applyCoreDefaults(cfg *Config) {
	if cfg.ClassDir == "" {
		cfg.ClassDir = "/etc/userctl"
	}
	if cfg.ClassExt == "" {
		cfg.ClassExt = ".class"
	}
	if cfg.RegistryCapacity == 0 {
		cfg.RegistryCapacity = 64
	}
	if cfg.SystemctlBinary == "" {
		cfg.SystemctlBinary = enforcer.DefaultBinary
	}
}

func applyDBusDefaults(cfg *DBusConfig) {
	if cfg.BusName == "" {
		cfg.BusName = "org.dylangardner.userctl"
	}
	if cfg.ObjectPath == "" {
		cfg.ObjectPath = "/org/dylangardner/userctl"
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9558
	}
}

func applyHealthDefaults(cfg *HealthConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9559
	}
}

// GetDefaultConfig returns a fully-defaulted Config, used when no config
// file is present and as the base Load unmarshals onto.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
