package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Reminder  ReminderConfig  `yaml:"reminder"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
}

// DiscordConfig holds Discord bot settings. The token can also be
// supplied via the DISCORD_TOKEN environment variable, which takes
// precedence over the file.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// ReminderConfig holds the reminder scheduler timings.
type ReminderConfig struct {
	ScanInterval  time.Duration `yaml:"scan_interval"`
	ErrorBackoff  time.Duration `yaml:"error_backoff"`
	WindowMin     time.Duration `yaml:"window_min"`
	WindowMax     time.Duration `yaml:"window_max"`
	PromptTimeout time.Duration `yaml:"prompt_timeout"`
}

// CleanupConfig holds settings for pruning finished events.
type CleanupConfig struct {
	RetentionDays int           `yaml:"retention_days"`
	Interval      time.Duration `yaml:"interval"`
}

// Load reads a YAML configuration file from the given path. A .env
// file in the working directory is applied first, if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "eventbot",
			ServiceVersion: "0.1.0",
		},
		Reminder: ReminderConfig{
			ScanInterval:  15 * time.Second,
			ErrorBackoff:  time.Minute,
			WindowMin:     30 * time.Second,
			WindowMax:     3 * time.Minute,
			PromptTimeout: 5 * time.Minute,
		},
		Cleanup: CleanupConfig{
			RetentionDays: 30,
			Interval:      time.Hour,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Discord.Token = token
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.Reminder.ScanInterval <= 0 {
		return fmt.Errorf("reminder scan_interval must be positive, got %s", c.Reminder.ScanInterval)
	}
	if c.Reminder.WindowMin < 0 || c.Reminder.WindowMax <= c.Reminder.WindowMin {
		return fmt.Errorf("reminder window [%s, %s] is not a valid range", c.Reminder.WindowMin, c.Reminder.WindowMax)
	}
	if c.Cleanup.RetentionDays <= 0 {
		return fmt.Errorf("cleanup retention_days must be positive, got %d", c.Cleanup.RetentionDays)
	}
	return nil
}
