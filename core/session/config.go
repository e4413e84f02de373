package session

import (
	"time"

	"github.com/trezcool/classroom/core"
)

const (
	DefaultSessionTimeout     = 30 * time.Minute
	DefaultInactivityTimeout  = 15 * time.Minute
	DefaultMaxSessionDuration = 8 * time.Hour
	DefaultCheckInterval      = 60 * time.Second
)

// Config holds the limits of one session. Zero fields take the defaults.
type Config struct {
	// SessionTimeout is accepted and validated but no expiry check consults it.
	SessionTimeout     time.Duration
	InactivityTimeout  time.Duration
	MaxSessionDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		SessionTimeout:     DefaultSessionTimeout,
		InactivityTimeout:  DefaultInactivityTimeout,
		MaxSessionDuration: DefaultMaxSessionDuration,
	}
}

// ConfigFrom maps the application session settings.
func ConfigFrom(conf core.SessionConfig) Config {
	return Config{
		SessionTimeout:     conf.SessionTimeout,
		InactivityTimeout:  conf.InactivityTimeout,
		MaxSessionDuration: conf.MaxSessionDuration,
	}
}

// withDefaults merges cfg over the defaults. Negative values are rejected.
func (cfg Config) withDefaults() (Config, error) {
	merged := DefaultConfig()
	fields := []struct {
		name string
		val  time.Duration
		dst  *time.Duration
	}{
		{"sessionTimeout", cfg.SessionTimeout, &merged.SessionTimeout},
		{"inactivityTimeout", cfg.InactivityTimeout, &merged.InactivityTimeout},
		{"maxSessionDuration", cfg.MaxSessionDuration, &merged.MaxSessionDuration},
	}
	for _, f := range fields {
		switch {
		case f.val < 0:
			return Config{}, core.NewConfigurationError(f.name, "must not be negative")
		case f.val > 0:
			*f.dst = f.val
		}
	}
	return merged, nil
}
