package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateDir validates a directory setting
func (v *Validator) ValidateDir(name, dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSchedule validates a sweep cron schedule
func (v *Validator) ValidateSchedule(schedule string) error {
	if schedule == "" {
		return nil // sweep runs once
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// HTTP
	if err := v.ValidatePort(cfg.HTTP.Port); err != nil {
		errors = append(errors, fmt.Errorf("http.port: %w", err))
	}
	if cfg.HTTP.ReadTimeout < 0 {
		errors = append(errors, fmt.Errorf("http.read_timeout must be >= 0"))
	}
	if cfg.HTTP.ShutdownTimeout < 0 {
		errors = append(errors, fmt.Errorf("http.shutdown_timeout must be >= 0"))
	}
	if cfg.HTTP.RateLimit < 0 {
		errors = append(errors, fmt.Errorf("http.rate_limit must be >= 0"))
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateWindow <= 0 {
		errors = append(errors, fmt.Errorf("http.rate_window must be > 0 when rate limiting is enabled"))
	}

	// Sessions
	if err := v.ValidateDir("sessions.pending_dir", cfg.Sessions.PendingDir); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateDir("sessions.persisted_dir", cfg.Sessions.PersistedDir); err != nil {
		errors = append(errors, err)
	}
	if cfg.Sessions.PendingDir != "" && cleanPath(cfg.Sessions.PendingDir) == cleanPath(cfg.Sessions.PersistedDir) {
		errors = append(errors, fmt.Errorf("sessions.pending_dir and sessions.persisted_dir must differ"))
	}
	if cfg.Sessions.SweepAge < 0 {
		errors = append(errors, fmt.Errorf("sessions.sweep_age must be >= 0"))
	}
	if err := v.ValidateSchedule(cfg.Sessions.SweepSchedule); err != nil {
		errors = append(errors, err)
	}

	// Protocol client
	if cfg.WhatsApp.PairTimeout < 0 {
		errors = append(errors, fmt.Errorf("whatsapp.pair_timeout must be >= 0"))
	}
	if cfg.WhatsApp.LogLevel != "" {
		if err := v.ValidateLogLevel(cfg.WhatsApp.LogLevel); err != nil {
			errors = append(errors, fmt.Errorf("whatsapp.log_level: %w", err))
		}
	}

	// Logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}

func cleanPath(p string) string {
	return filepath.Clean(strings.TrimSpace(p))
}
