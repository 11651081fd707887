// Package logging builds the logrus logger shared by all components of a run.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger is a logrus logger optionally mirrored to a log file.
type Logger struct {
	*logrus.Logger
	file  *os.File
	runID string
}

type Options struct {
	// Level is a logrus level name, "info" when empty
	Level string
	// File is an optional log file, records are appended
	File string
	// Output defaults to stdout
	Output io.Writer
}

func New(opts Options) (*Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		var err error
		level, err = logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logging.New: %w", err)
		}
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	l := &Logger{
		Logger: logrus.New(),
		runID:  uuid.NewString(),
	}
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if opts.File != "" {
		if err := l.setupFile(opts.File); err != nil {
			return nil, fmt.Errorf("logging.New: %w", err)
		}
		out = io.MultiWriter(out, l.file)
	}
	l.SetOutput(out)

	return l, nil
}

func (l *Logger) setupFile(fileName string) error {
	if err := os.MkdirAll(filepath.Dir(fileName), 0o755); err != nil {
		return err
	}

	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return err
	}

	l.file = file
	return nil
}

// RunID identifies the run in every record logged through Run.
func (l *Logger) RunID() string {
	return l.runID
}

// Run returns the logger with the run id attached.
func (l *Logger) Run() *logrus.Entry {
	return l.WithField("run_id", l.runID)
}

func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}
