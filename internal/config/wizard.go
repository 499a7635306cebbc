package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and writing prompts to out
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for each setting, starting from base. An empty answer keeps the
// current value.
func (w *Wizard) Run(base *Config) (*Config, error) {
	cfg := base
	if cfg == nil {
		cfg = DefaultConfig()
	}
	validator := NewValidator()

	fmt.Fprintln(w.out, "=== wapair configuration ===")
	fmt.Fprintln(w.out)

	// HTTP port
	for {
		answer, err := w.ask("HTTP port", strconv.Itoa(cfg.HTTP.Port))
		if err != nil {
			return nil, err
		}
		port, err := strconv.Atoi(answer)
		if err == nil {
			err = validator.ValidatePort(port)
		}
		if err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.HTTP.Port = port
		break
	}

	var err error
	if cfg.HTTP.StaticDir, err = w.ask("Static files directory", cfg.HTTP.StaticDir); err != nil {
		return nil, err
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Sessions:")

	if cfg.Sessions.PendingDir, err = w.ask("Pending directory", cfg.Sessions.PendingDir); err != nil {
		return nil, err
	}
	if cfg.Sessions.PersistedDir, err = w.ask("Persisted directory", cfg.Sessions.PersistedDir); err != nil {
		return nil, err
	}

	resume, err := w.ask("Resume persisted sessions on start? (y/n)", yesNo(cfg.Sessions.ResumeOnStart))
	if err != nil {
		return nil, err
	}
	cfg.Sessions.ResumeOnStart = strings.HasPrefix(strings.ToLower(resume), "y")

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Logging:")

	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, keeping %s\n", err, cfg.Logging.Level)
	} else {
		cfg.Logging.Level = level
	}

	if errs := validator.ValidateConfig(cfg); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

func (w *Wizard) ask(prompt, current string) (string, error) {
	fmt.Fprintf(w.out, "%s [%s]: ", prompt, current)
	line, err := w.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current, nil
	}
	return line, nil
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}
