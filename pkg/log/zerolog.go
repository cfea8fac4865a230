package log

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ZerologLogger adapts zerolog.Logger to Logger. Errors that implement
// zerolog.LogObjectMarshaler are logged with their structured fields.
type ZerologLogger struct {
	z zerolog.Logger
}

// NewZerologLogger wraps z and sets its minimum level.
func NewZerologLogger(z zerolog.Logger, level Level) *ZerologLogger {
	return &ZerologLogger{z: z.Level(toZerologLevel(level))}
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (zl *ZerologLogger) Debug(msg string, fields ...any) {
	zl.z.Debug().Fields(fields).Msg(msg)
}

func (zl *ZerologLogger) Info(msg string, fields ...any) {
	zl.z.Info().Fields(fields).Msg(msg)
}

func (zl *ZerologLogger) Warn(msg string, fields ...any) {
	zl.z.Warn().Fields(fields).Msg(msg)
}

func (zl *ZerologLogger) Error(msg string, fields ...any) {
	ev := zl.z.Error()
	err, rest := splitLeadingError(fields)
	if err != nil {
		ev = ev.Err(err)
		var m zerolog.LogObjectMarshaler
		if errors.As(err, &m) {
			ev = ev.Object("error_detail", m)
		}
		if st := extractStacktrace(err); st != "" {
			ev = ev.Str(StacktraceAttrKey, st)
		}
	}
	ev.Fields(rest).Msg(msg)
}

func (zl *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{z: zl.z.With().Fields(fields).Logger()}
}

func (zl *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= zl.z.GetLevel()
}
