// Package config loads Finey configuration from ~/.finey/config.yaml and
// FINEY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full Finey configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Daemon    DaemonConfig    `mapstructure:"daemon" yaml:"daemon"`
	Firebase  FirebaseConfig  `mapstructure:"firebase" yaml:"firebase"`
	Policy    PolicyConfig    `mapstructure:"policy" yaml:"policy"`
	Reminders RemindersConfig `mapstructure:"reminders" yaml:"reminders"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// APIConfig configures the payment backend client.
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	AppVersion string        `mapstructure:"app_version" yaml:"app_version"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DaemonConfig configures the local HTTP API and its database.
type DaemonConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// FirebaseConfig configures the remote record store, proof storage and
// identity token refresh. An empty ProjectID keeps records in memory.
type FirebaseConfig struct {
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	Collection      string `mapstructure:"collection" yaml:"collection"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
}

// PolicyConfig holds the client-side lifecycle rules.
type PolicyConfig struct {
	DepositFloor  int64         `mapstructure:"deposit_floor" yaml:"deposit_floor"`
	DeletionGrace time.Duration `mapstructure:"deletion_grace" yaml:"deletion_grace"`
	ReminderTitle string        `mapstructure:"reminder_title" yaml:"reminder_title"`
}

// RemindersConfig configures the reminder dispatcher.
type RemindersConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Retention    time.Duration `mapstructure:"retention" yaml:"retention"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
	Environment  string `mapstructure:"environment" yaml:"environment"`
}

// LogConfig configures the local log handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Dir returns the Finey home directory (~/.finey).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".finey"
	}
	return filepath.Join(home, ".finey")
}

// Path returns the default config file path.
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "https://api.finey.app",
			AppVersion: "1.0.2",
			Timeout:    10 * time.Second,
		},
		Daemon: DaemonConfig{
			Listen: "127.0.0.1:7467",
			DBPath: filepath.Join(Dir(), "finey.db"),
		},
		Firebase: FirebaseConfig{
			Collection: "users",
		},
		Policy: PolicyConfig{
			DepositFloor:  1000,
			DeletionGrace: 24 * time.Hour,
			ReminderTitle: "Deadline approaching",
		},
		Reminders: RemindersConfig{
			PollInterval: time.Second,
			Retention:    7 * 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "finey",
			Environment: "development",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path (Path() when empty) over the defaults and
// applies FINEY_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FINEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults registers every key so AutomaticEnv can override keys that
// the file does not mention.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.app_version", cfg.API.AppVersion)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("daemon.listen", cfg.Daemon.Listen)
	v.SetDefault("daemon.db_path", cfg.Daemon.DBPath)
	v.SetDefault("firebase.project_id", cfg.Firebase.ProjectID)
	v.SetDefault("firebase.credentials_file", cfg.Firebase.CredentialsFile)
	v.SetDefault("firebase.collection", cfg.Firebase.Collection)
	v.SetDefault("firebase.bucket", cfg.Firebase.Bucket)
	v.SetDefault("firebase.api_key", cfg.Firebase.APIKey)
	v.SetDefault("policy.deposit_floor", cfg.Policy.DepositFloor)
	v.SetDefault("policy.deletion_grace", cfg.Policy.DeletionGrace)
	v.SetDefault("policy.reminder_title", cfg.Policy.ReminderTitle)
	v.SetDefault("reminders.poll_interval", cfg.Reminders.PollInterval)
	v.SetDefault("reminders.retention", cfg.Reminders.Retention)
	v.SetDefault("telemetry.otlp_endpoint", cfg.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.service_name", cfg.Telemetry.ServiceName)
	v.SetDefault("telemetry.environment", cfg.Telemetry.Environment)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// Validate checks values the core cannot run without.
func (c *Config) Validate() error {
	if c.Policy.DepositFloor <= 0 {
		return fmt.Errorf("policy.deposit_floor must be positive, got %d", c.Policy.DepositFloor)
	}
	if c.Policy.DeletionGrace < 0 {
		return fmt.Errorf("policy.deletion_grace must not be negative, got %s", c.Policy.DeletionGrace)
	}
	if c.Reminders.PollInterval <= 0 {
		return fmt.Errorf("reminders.poll_interval must be positive, got %s", c.Reminders.PollInterval)
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	return nil
}

// Save writes cfg as YAML to path, creating the directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
