// Package logging provides structured logging for the Planhub client core.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents a log level.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// logrusLevel maps a LogLevel onto the backend's level. Unknown values
// fall back to info.
func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelInfo:
		return logrus.InfoLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	}
	return logrus.InfoLevel
}

// Logger emits structured JSON log entries. Instances are cheap to derive
// and safe for concurrent use.
type Logger struct {
	entry *logrus.Entry
}

var (
	// global logger instance
	global *Logger
	once   sync.Once
)

// New creates a logger writing JSON entries to out at the given minimum level.
func New(out io.Writer, minLevel LogLevel) *Logger {
	backend := logrus.New()
	backend.SetOutput(out)
	backend.SetLevel(minLevel.logrusLevel())
	backend.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})
	return &Logger{entry: logrus.NewEntry(backend)}
}

// Init initializes the global logger.
func Init(out io.Writer, minLevel LogLevel) {
	once.Do(func() {
		global = New(out, minLevel)
	})
}

// Get returns the global logger instance.
func Get() *Logger {
	if global == nil {
		Init(os.Stdout, LevelInfo)
	}
	return global
}

// WithComponent returns a derived logger tagging every entry with the
// emitting subsystem.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{entry: l.entry.WithField("component", name)}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	l.entry.WithFields(mergeContext(context...)).Debug(message)
}

// Info logs an info message.
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	l.entry.WithFields(mergeContext(context...)).Info(message)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	l.entry.WithFields(mergeContext(context...)).Warn(message)
}

// Error logs an error message.
func (l *Logger) Error(message string, err error, context ...map[string]interface{}) {
	entry := l.entry.WithFields(mergeContext(context...))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

// mergeContext merges multiple context maps into backend fields.
func mergeContext(context ...map[string]interface{}) logrus.Fields {
	if len(context) == 0 {
		return nil
	}
	merged := make(logrus.Fields)
	for _, c := range context {
		for k, v := range c {
			merged[k] = v
		}
	}
	return merged
}

// Convenience functions using the global logger

func Debug(message string, context ...map[string]interface{}) {
	Get().Debug(message, context...)
}

func Info(message string, context ...map[string]interface{}) {
	Get().Info(message, context...)
}

func Warn(message string, context ...map[string]interface{}) {
	Get().Warn(message, context...)
}

func Error(message string, err error, context ...map[string]interface{}) {
	Get().Error(message, err, context...)
}
