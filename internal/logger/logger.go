// Package logger builds the process-wide zerolog logger and adapts it for
// the protocol client.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level     string // debug, info, warn, error
	File      string // appended to when set
	Console   bool
	Pretty    bool // human-readable console output instead of JSON
	Redaction bool // mask phone numbers, pairing codes and secrets

	// Out receives console output. Nil means stdout.
	Out io.Writer
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Console:   true,
		Pretty:    true,
		Redaction: true,
	}
}

// Logger owns the root zerolog logger and its log file.
type Logger struct {
	root zerolog.Logger
	file *os.File
}

// New creates the root logger and installs it as the global logger.
// An unknown level falls back to info.
func New(cfg Config) (*Logger, error) {
	out, file, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Redaction {
		out = NewRedactor().Wrap(out)
	}

	root := zerolog.New(out).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().
		Timestamp().
		Logger()
	log.Logger = root

	return &Logger{
		root: root,
		file: file,
	}, nil
}

func openOutput(cfg Config) (io.Writer, *os.File, error) {
	var writers []io.Writer

	if cfg.Console {
		out := cfg.Out
		if out == nil {
			out = os.Stdout
		}
		if cfg.Pretty {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		}
		writers = append(writers, out)
	}

	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	switch len(writers) {
	case 0:
		return io.Discard, nil, nil
	case 1:
		return writers[0], file, nil
	default:
		return io.MultiWriter(writers...), file, nil
	}
}

func parseLevel(s string, fallback zerolog.Level) zerolog.Level {
	if s == "" {
		return fallback
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return fallback
	}
	return level
}

// Zerolog returns the root logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.root
}

// Component returns the root logger scoped to a component.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.root.With().Str("component", name).Logger()
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
