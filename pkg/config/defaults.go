package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills in any unspecified configuration fields with
// sensible defaults, applied after file/environment unmarshaling and
// before validation.
func ApplyDefaults(cfg *Config) {
	if cfg.SessionRoot == "" {
		cfg.SessionRoot = "/mnt"
	}

	applyHostFSDefaults(&cfg.HostFS)
	applySweepDefaults(&cfg.Sweep)
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
}

func applyHostFSDefaults(cfg *HostFSConfig) {
	if cfg.Type == "" {
		cfg.Type = "local"
	}
	if cfg.Local == nil {
		cfg.Local = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}

func applySweepDefaults(cfg *SweepConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
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

// GetDefaultConfig returns a Config with every default applied, useful
// for generating a sample configuration file or as a test fixture.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
