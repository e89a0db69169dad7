package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/grovetools/statesync/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	// base is shared by every component entry so that a level change
	// made by a config reload reaches all of them.
	base = newBaseLogger(Config{})
)

// Configure rebuilds the shared logger from cfg. Entries handed out by
// NewLogger before the call keep working and pick up the new settings.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	fresh := newBaseLogger(cfg)
	base.SetLevel(fresh.GetLevel())
	base.SetFormatter(fresh.Formatter)
	base.SetReportCaller(fresh.ReportCaller)
	base.SetOutput(fresh.Out)
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	entry := base.WithField("component", component)
	loggers[component] = entry
	return entry
}

// SetLevel changes the level of all component loggers.
func SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	base.SetLevel(parsed)
	return nil
}

// Level returns the current shared log level.
func Level() logrus.Level {
	return base.GetLevel()
}

func newBaseLogger(cfg Config) *logrus.Logger {
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("STATESYNC_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("STATESYNC_LOG_CALLER") == "true" || cfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch cfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: cfg.Format})
	}

	var writers []io.Writer

	if cfg.File.Enabled {
		path := expandPath(cfg.File.Path)
		if path == "" {
			path = filepath.Join(paths.StateDir(), "statesync.log")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			logger.Warnf("Failed to create log directory for %s: %v", path, err)
		} else if file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			logger.Warnf("Failed to open log file %s: %v", path, err)
		} else {
			writers = append(writers, file)
		}
	}

	stderrMode := cfg.Format.StructuredToStderr
	if stderrMode == "" {
		stderrMode = "auto"
	}
	switch stderrMode {
	case "always":
		writers = append(writers, GetGlobalOutput())
	case "never":
	default:
		// auto: an interactive terminal with a file sink stays quiet unless debugging.
		isDebug := os.Getenv("STATESYNC_DEBUG") == "1" || level >= logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		if isDebug || !isInteractive || len(writers) == 0 {
			writers = append(writers, GetGlobalOutput())
		}
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
