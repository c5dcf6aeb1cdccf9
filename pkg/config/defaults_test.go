package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "/etc/userctl", cfg.ClassDir)
	assert.Equal(t, ".class", cfg.ClassExt)
	assert.Equal(t, 64, cfg.RegistryCapacity)
	assert.NotEmpty(t, cfg.SystemctlBinary)
	assert.Equal(t, "org.dylangardner.userctl", cfg.DBus.BusName)
	assert.Equal(t, "/org/dylangardner/userctl", cfg.DBus.ObjectPath)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 9558, cfg.Metrics.Port)
	assert.Equal(t, 9559, cfg.Health.Port)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{ClassDir: "/custom/dir", RegistryCapacity: 5}
	ApplyDefaults(cfg)

	assert.Equal(t, "/custom/dir", cfg.ClassDir)
	assert.Equal(t, 5, cfg.RegistryCapacity)
}

func TestApplyDefaults_NormalizesLogLevelCase(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	assert.NoError(t, Validate(GetDefaultConfig()))
}
