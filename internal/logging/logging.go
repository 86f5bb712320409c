// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options selects level, format and output. Empty fields keep the
// defaults: warn, text, stderr.
type Options struct {
	Level  string
	Format string
	Output string
}

// Init configures logger and returns a closer for a log file opened by it.
func Init(logger *logrus.Logger, opts Options) (io.Closer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	lvl := strings.TrimSpace(opts.Level)
	if lvl == "" {
		lvl = "warn"
	}
	level, err := logrus.ParseLevel(lvl)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'warn' instead. Error: %v", opts.Level, err)
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	switch out := strings.TrimSpace(opts.Output); strings.ToLower(out) {
	case "", "stderr":
		logger.SetOutput(os.Stderr)
	case "stdout":
		logger.SetOutput(os.Stdout)
	default:
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.SetOutput(os.Stderr)
			return closer, err
		}
		logger.SetOutput(f)
		closer = f
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
