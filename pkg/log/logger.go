package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New builds the application logger.
// An invalid level string falls back to info
func New(level string, output io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.SetLevel(logrus.InfoLevel)
	if output != nil {
		logger.SetOutput(output)
	}

	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	} else if level != "" {
		logger.Warnf("Invalid log level '%s', using default 'info'", level)
	}
	return logger
}

// Discard returns a logger that swallows all output, for tests
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
