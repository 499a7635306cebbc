package logger

import (
	"github.com/rs/zerolog"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// protocolLogger forwards the protocol client's printf-style logs to zerolog.
type protocolLogger struct {
	logger zerolog.Logger
}

// Protocol returns a whatsmeow logger writing to base under module, dropping
// events below level.
func Protocol(base zerolog.Logger, module, level string) waLog.Logger {
	lvl := parseLevel(level, zerolog.WarnLevel)
	// never more verbose than the base logger
	if base.GetLevel() > lvl {
		lvl = base.GetLevel()
	}
	return &protocolLogger{
		logger: base.Level(lvl).With().Str("module", module).Logger(),
	}
}

func (l *protocolLogger) Warnf(msg string, args ...interface{}) {
	l.logger.Warn().Msgf(msg, args...)
}

func (l *protocolLogger) Errorf(msg string, args ...interface{}) {
	l.logger.Error().Msgf(msg, args...)
}

func (l *protocolLogger) Infof(msg string, args ...interface{}) {
	l.logger.Info().Msgf(msg, args...)
}

func (l *protocolLogger) Debugf(msg string, args ...interface{}) {
	l.logger.Debug().Msgf(msg, args...)
}

func (l *protocolLogger) Sub(module string) waLog.Logger {
	return &protocolLogger{
		logger: l.logger.With().Str("submodule", module).Logger(),
	}
}
