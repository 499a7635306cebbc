package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main wapair configuration
type Config struct {
	// HTTP front-end
	HTTP HTTPConfig `json:"http" mapstructure:"http"`

	// Session storage areas
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// Protocol client
	WhatsApp WhatsAppConfig `json:"whatsapp" mapstructure:"whatsapp"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Host            string `json:"host" mapstructure:"host"`
	Port            int    `json:"port" mapstructure:"port"`
	StaticDir       string `json:"static_dir" mapstructure:"static_dir"`
	ReadTimeout     int    `json:"read_timeout" mapstructure:"read_timeout"`         // seconds
	ShutdownTimeout int    `json:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
	// RateLimit is the number of /connect requests allowed per client IP
	// within RateWindow. 0 disables limiting.
	RateLimit  int `json:"rate_limit" mapstructure:"rate_limit"`
	RateWindow int `json:"rate_window" mapstructure:"rate_window"` // seconds
}

// SessionsConfig holds session storage configuration
type SessionsConfig struct {
	PendingDir    string `json:"pending_dir" mapstructure:"pending_dir"`
	PersistedDir  string `json:"persisted_dir" mapstructure:"persisted_dir"`
	ResumeOnStart bool   `json:"resume_on_start" mapstructure:"resume_on_start"`
	SweepAge      int    `json:"sweep_age" mapstructure:"sweep_age"` // hours
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// WhatsAppConfig holds protocol client configuration
type WhatsAppConfig struct {
	ClientName  string `json:"client_name" mapstructure:"client_name"`
	PairTimeout int    `json:"pair_timeout" mapstructure:"pair_timeout"` // seconds
	LogLevel    string `json:"log_level" mapstructure:"log_level"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			StaticDir:       "public",
			ReadTimeout:     30,
			ShutdownTimeout: 10,
			RateLimit:       30,
			RateWindow:      60,
		},
		Sessions: SessionsConfig{
			PendingDir:    "temp",
			PersistedDir:  "sessions",
			ResumeOnStart: true,
			SweepAge:      24,
			SweepSchedule: "@hourly",
		},
		WhatsApp: WhatsAppConfig{
			ClientName:  "Safari (Mac OS)",
			PairTimeout: 30,
			LogLevel:    "warn",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
	}
}

// Addr returns the listen address
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SweepMaxAge returns the sweep age as a duration
func (c SessionsConfig) SweepMaxAge() time.Duration {
	return time.Duration(c.SweepAge) * time.Hour
}

// PairTimeoutDuration returns the pairing wait as a duration
func (c WhatsAppConfig) PairTimeoutDuration() time.Duration {
	return time.Duration(c.PairTimeout) * time.Second
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if errs := NewValidator().ValidateConfig(c); len(errs) > 0 {
		return errs[0]
	}
	return nil
}
