package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	mlerrors "github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// Output formats accepted by SetupLogger.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatZerolog = "zerolog"
)

// Options configures the process-wide logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, text, zerolog

	// Output defaults to os.Stdout.
	Output io.Writer

	// FilePath enables an additional rotating log file.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SetupLogger builds the logger described by opts, installs it as the
// default logger and routes library warnings to it.
func SetupLogger(opts Options) (Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.FilePath != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
	}

	var logger Logger
	switch opts.Format {
	case FormatZerolog:
		logger = NewZerologLogger(zerolog.New(out).With().Timestamp().Logger(), level)
	case FormatJSON, "":
		logger = NewSlogLogger(slog.New(WrapByErrFmtHandler(slog.NewJSONHandler(out, handlerOptions(level)))))
	case FormatText:
		logger = NewSlogLogger(slog.New(WrapByErrFmtHandler(slog.NewTextHandler(out, handlerOptions(level)))))
	default:
		return nil, fmt.Errorf("invalid log format: %s", opts.Format)
	}

	if sl, ok := logger.(*SlogLogger); ok {
		slog.SetDefault(sl.l)
	}
	SetLogger(logger)
	mlerrors.SetStructuredWarnFunc(func(w error) {
		logger.Warn(w.Error(), ErrorTypeKey, fmt.Sprintf("%T", w))
	})
	return logger, nil
}

func handlerOptions(level Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.Level(level),
		// Cloud Logging field names.
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			case slog.SourceKey:
				attr.Key = "logging.googleapis.com/sourceLocation"
			}
			return attr
		},
	}
}

// ParseLevel converts a level name into a Level.
func ParseLevel(level string) (Level, error) {
	switch level {
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
