// Package logging wraps logrus with the small set of structured helpers the
// codegen pipeline needs: one logger per run, fields for donor identity and
// board name, and a level controlled independently of CLI output.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus' level set without exposing the dependency at call sites.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) toLogrus() logrus.Level {
	switch l {
	case LevelError:
		return logrus.ErrorLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelDebug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger is a thin wrapper around *logrus.Logger used for pipeline
// diagnostics; user-facing progress output still goes through plain fmt.
type Logger struct {
	l *logrus.Logger
}

// New creates a Logger writing to w at the given level.
func New(w io.Writer, level Level) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level.toLogrus())
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false, FullTimestamp: true})
	return &Logger{l: l}
}

// Default returns a Logger writing to stderr at info level.
func Default() *Logger {
	return New(os.Stderr, LevelInfo)
}

// SetLevel adjusts the logger's verbosity after construction.
func (lg *Logger) SetLevel(level Level) { lg.l.SetLevel(level.toLogrus()) }

// WithField returns an entry carrying one structured field.
func (lg *Logger) WithField(key string, value any) *logrus.Entry {
	return lg.l.WithField(key, value)
}

// WithFields returns an entry carrying several structured fields.
func (lg *Logger) WithFields(fields map[string]any) *logrus.Entry {
	return lg.l.WithFields(logrus.Fields(fields))
}

// WithError returns an entry carrying an error field.
func (lg *Logger) WithError(err error) *logrus.Entry {
	return lg.l.WithError(err)
}

func (lg *Logger) Debugf(format string, args ...any) { lg.l.Debugf(format, args...) }
func (lg *Logger) Infof(format string, args ...any)  { lg.l.Infof(format, args...) }
func (lg *Logger) Warnf(format string, args ...any)  { lg.l.Warnf(format, args...) }
func (lg *Logger) Errorf(format string, args ...any) { lg.l.Errorf(format, args...) }
