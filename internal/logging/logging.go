// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction. File is optional; when set, output
// is written to a size-rotated file as well as stderr.
type Options struct {
	Level      string
	Verbose    bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a configured logger. The returned closer releases the log file
// and is never nil.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	l.SetOutput(os.Stderr)

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nopCloser{}, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)

	if opts.File == "" {
		return l, nopCloser{}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	l.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return l, rotator, nil
}

// Component returns an entry tagged with the component name.
func Component(l logrus.FieldLogger, name string) *logrus.Entry {
	return l.WithField("component", name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
