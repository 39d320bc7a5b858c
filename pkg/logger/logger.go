// Package logger provides structured logging for the mutation layer.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is a map of structured log fields.
type Fields = logrus.Fields

// Logger wraps a logrus entry with the call shape used across the layer.
type Logger struct {
	entry *logrus.Entry
}

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output io.Writer
}

// New creates a new logger for the given component.
func New(component string, cfg Config) *Logger {
	l := logrus.New()

	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	return &Logger{entry: l.WithField("component", component)}
}

// Default returns a logger with default settings.
func Default(component string) *Logger {
	return New(component, Config{})
}

// WithContext attaches a context to the logger.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{entry: l.entry.WithContext(ctx)}
}

// WithFields attaches structured fields.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

// WithField attaches a single field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithError attaches an error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string) { l.entry.Debug(msg) }

// Info logs at info level.
func (l *Logger) Info(msg string) { l.entry.Info(msg) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string) { l.entry.Warn(msg) }

// Error logs at error level.
func (l *Logger) Error(msg string) { l.entry.Error(msg) }
