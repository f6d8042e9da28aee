package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger passed to every component.
// Arguments after msg are alternating key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}

type Options struct {
	Level   string
	Pretty  bool
	Service string
	Output  io.Writer
}

type zeroLogger struct {
	zl zerolog.Logger
}

// New builds a JSON logger on stdout at the given level.
func New(level string) Logger {
	return NewWithOptions(Options{Level: level})
}

func NewWithOptions(opts Options) Logger {
	var w io.Writer = os.Stdout
	if opts.Output != nil {
		w = opts.Output
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	zl := zerolog.New(w).Level(parseLevel(opts.Level)).With().Timestamp().Logger()
	if opts.Service != "" {
		zl = zl.With().Str("service", opts.Service).Logger()
	}
	return &zeroLogger{zl: zl}
}

// Nop discards everything. Used by tests.
func Nop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

func (l *zeroLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.write(l.zl.Debug(), msg, keysAndValues)
}

func (l *zeroLogger) Info(msg string, keysAndValues ...interface{}) {
	l.write(l.zl.Info(), msg, keysAndValues)
}

func (l *zeroLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.write(l.zl.Warn(), msg, keysAndValues)
}

func (l *zeroLogger) Error(msg string, keysAndValues ...interface{}) {
	l.write(l.zl.Error(), msg, keysAndValues)
}

func (l *zeroLogger) Fatal(msg string, keysAndValues ...interface{}) {
	l.write(l.zl.Fatal(), msg, keysAndValues)
}

func (l *zeroLogger) With(keysAndValues ...interface{}) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(normalize(keysAndValues)).Logger()}
}

func (l *zeroLogger) write(evt *zerolog.Event, msg string, keysAndValues []interface{}) {
	if evt == nil {
		return
	}
	if len(keysAndValues) > 0 {
		evt = evt.Fields(normalize(keysAndValues))
	}
	evt.Msg(msg)
}

// normalize pads a dangling key so zerolog never drops the pair silently.
func normalize(keysAndValues []interface{}) []interface{} {
	if len(keysAndValues)%2 == 0 {
		return keysAndValues
	}
	out := make([]interface{}, 0, len(keysAndValues)+1)
	out = append(out, keysAndValues...)
	return append(out, "(MISSING)")
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
