// Package config loads sessionfsd's configuration from a YAML file,
// environment variables, and defaults, the way the teacher's own
// pkg/config loads DittoFS's configuration: Viper for layered sources,
// go-playground/validator for struct-tag validation, mapstructure for
// decoding the type-specific host-binding section.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is sessionfsd's complete configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (SESSIONFS_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// SessionRoot is the absolute path every session-managed file must
	// lie beneath, seeded into the path gate at startup.
	SessionRoot string `mapstructure:"session_root" validate:"required"`

	// HostFS selects and configures the host-filesystem binding.
	HostFS HostFSConfig `mapstructure:"hostfs"`

	// Sweep controls the background dead-owner reaper.
	Sweep SweepConfig `mapstructure:"sweep"`

	// Server contains daemon-wide settings.
	Server ServerConfig `mapstructure:"server"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`
}

// HostFSConfig specifies which hostfs.FS binding to construct.
type HostFSConfig struct {
	// Type selects the binding implementation.
	// Valid values: local, memory, s3
	Type string `mapstructure:"type" validate:"required,oneof=local memory s3"`

	// Local contains local-disk-specific configuration. Currently
	// parameter-free: the local binding opens paths verbatim.
	Local map[string]any `mapstructure:"local"`

	// S3 contains S3-specific configuration, decoded into s3.Config by
	// the factory in factories.go when Type == "s3".
	S3 map[string]any `mapstructure:"s3"`
}

// SweepConfig controls the background sweep loop.
type SweepConfig struct {
	// Interval is the time between consecutive sweep passes.
	Interval time.Duration `mapstructure:"interval" validate:"required,gt=0"`
}

// ServerConfig contains daemon-wide settings.
type ServerConfig struct {
	// ShutdownTimeout bounds how long graceful shutdown waits for the
	// two-phase coordinator to quiesce before giving up.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format names the log output format (text or json). It is defaulted
	// and validated only; internal/logger always writes plain text.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output names where logs go: stdout, stderr, or a file path. It is
	// defaulted and validated only; internal/logger always writes to
	// stdout.
	Output string `mapstructure:"output" validate:"required"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable and config file discovery.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SESSIONFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv alone is ignored by Unmarshal for keys that no file
	// sets, so every scalar key is bound to its SESSIONFS_* variable.
	for _, key := range []string{
		"session_root",
		"hostfs.type",
		"sweep.interval",
		"server.shutdown_timeout",
		"logging.level",
		"logging.format",
		"logging.output",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists; a missing
// file is not an error, since defaults cover every required field.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit configPath that does not exist surfaces as a raw
		// *fs.PathError rather than ConfigFileNotFoundError.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/sessionfs, falling back to
// ~/.config/sessionfs, or "." if the home directory cannot be resolved.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sessionfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "sessionfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists reports whether a config file exists at the default
// location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
