package cli

import (
	"io"
	"os"

	"github.com/grovetools/statesync/logging"
	"github.com/sirupsen/logrus"
)

// LoggerOption represents a function that configures a logger
type LoggerOption func(*logrus.Logger)

// WithOutput sets the logger output
func WithOutput(w io.Writer) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetOutput(w)
	}
}

// WithLevel sets the log level
func WithLevel(level logrus.Level) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetLevel(level)
	}
}

// WithFormatter sets the log formatter
func WithFormatter(formatter logrus.Formatter) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetFormatter(formatter)
	}
}

// NewLogger creates a standalone logger that does not share the level of
// the component loggers, e.g. for an embedded server. It writes text lines
// to stderr unless options say otherwise.
func NewLogger(component string, opts ...LoggerOption) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logging.TextFormatter{})

	for _, opt := range opts {
		opt(logger)
	}
	return logger.WithField("component", component)
}
