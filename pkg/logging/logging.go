// Package logging implements the StructuredLogger (spec C4): a level-filtered,
// structured event sink built once at startup and passed explicitly into every
// component that needs it. There is deliberately no package-level singleton —
// §9's design note calls for an explicit initialization phase producing
// immutable handles instead of ambient global state.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with the fields this codebase logs by.
type Logger struct {
	*logrus.Logger
}

// Config controls level/format/output.
type Config struct {
	Level      string
	Format     string
	Output     string
	FilePrefix string
}

// New builds a Logger from Config.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "regulens-core"
		}
		if err := os.MkdirAll("logs", 0o755); err != nil {
			l.WithError(err).Error("failed to create logs directory; logging to stdout only")
			break
		}
		path := filepath.Join("logs", prefix+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			l.WithError(err).Error("failed to open log file; logging to stdout only")
			break
		}
		l.SetOutput(io.MultiWriter(os.Stdout, f))
	default:
		l.SetOutput(os.Stdout)
	}

	return &Logger{Logger: l}
}

// NewDefault builds a Logger with sane defaults, used by tests and the CLI console.
func NewDefault(component string) *Logger {
	l := New(Config{Level: "info", Format: "text", Output: "stdout"})
	return &Logger{Logger: l.WithField("component", component).Logger}
}

// Component returns a child logger tagged with a component name, the unit
// most of this codebase's packages log under.
func (l *Logger) Component(name string) *logrus.Entry {
	return l.WithField("component", name)
}
