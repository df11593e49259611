package webrtc

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerFactory routes pion's internal logging into zerolog.
type LoggerFactory struct {
	Level zerolog.Level
}

// NewLogger implements logging.LoggerFactory.
func (f LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{
		l: log.Logger.Level(f.Level).With().
			Str("module", "pion").
			Str("scope", scope).
			Logger(),
	}
}

type leveledLogger struct {
	l zerolog.Logger
}

func (z *leveledLogger) Trace(msg string)                          { z.l.Trace().Msg(msg) }
func (z *leveledLogger) Tracef(format string, args ...interface{}) { z.l.Trace().Msgf(format, args...) }
func (z *leveledLogger) Debug(msg string)                          { z.l.Debug().Msg(msg) }
func (z *leveledLogger) Debugf(format string, args ...interface{}) { z.l.Debug().Msgf(format, args...) }
func (z *leveledLogger) Info(msg string)                           { z.l.Info().Msg(msg) }
func (z *leveledLogger) Infof(format string, args ...interface{})  { z.l.Info().Msgf(format, args...) }
func (z *leveledLogger) Warn(msg string)                           { z.l.Warn().Msg(msg) }
func (z *leveledLogger) Warnf(format string, args ...interface{})  { z.l.Warn().Msgf(format, args...) }
func (z *leveledLogger) Error(msg string)                          { z.l.Error().Msg(msg) }
func (z *leveledLogger) Errorf(format string, args ...interface{}) { z.l.Error().Msgf(format, args...) }
