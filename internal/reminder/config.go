// Package reminder schedules one-shot local reminders and fires them when due.
package reminder

import "time"

// Config defines the dispatcher configuration.
type Config struct {
	// PollInterval is how often due reminders are checked.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Retention is how long fired reminders are kept. Zero keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() *Config {
	return &Config{
		PollInterval: time.Second,
		Retention:    7 * 24 * time.Hour,
	}
}
