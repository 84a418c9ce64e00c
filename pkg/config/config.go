package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. Interval fields are whole seconds,
// matching the flag and environment variable surface.
type Config struct {
	Port           int    `yaml:"port"`
	GCInterval     int    `yaml:"gc_interval"`
	BackupPath     string `yaml:"backup_path"`
	BackupInterval int    `yaml:"backup_interval"`
	MetricsAddr    string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Port:           3000,
		GCInterval:     60,
		BackupInterval: 600,
	}
}

// LoadFile overlays values from a YAML config file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays values from environment variables (PORT, GC_INTERVAL,
// BACKUP_PATH, BACKUP_INTERVAL, METRICS_ADDR).
func (c *Config) ApplyEnv() error {
	if err := intFromEnv("PORT", &c.Port); err != nil {
		return err
	}
	if err := intFromEnv("GC_INTERVAL", &c.GCInterval); err != nil {
		return err
	}
	if err := intFromEnv("BACKUP_INTERVAL", &c.BackupInterval); err != nil {
		return err
	}

	if v, ok := os.LookupEnv("BACKUP_PATH"); ok {
		c.BackupPath = v
	}
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}

	return nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.GCInterval < 1 {
		return fmt.Errorf("invalid gc interval: %d", c.GCInterval)
	}
	if c.BackupInterval < 1 {
		return fmt.Errorf("invalid backup interval: %d", c.BackupInterval)
	}
	return nil
}

// GCIntervalDuration returns the GC interval as a duration
func (c *Config) GCIntervalDuration() time.Duration {
	return time.Duration(c.GCInterval) * time.Second
}

// BackupIntervalDuration returns the backup interval as a duration
func (c *Config) BackupIntervalDuration() time.Duration {
	return time.Duration(c.BackupInterval) * time.Second
}

func intFromEnv(name string, target *int) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}

	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}

	*target = parsed
	return nil
}
