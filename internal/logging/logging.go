package logging

import "github.com/sirupsen/logrus"

// LogFormat selects the logrus output format.
type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// NewLogger creates a logrus logger with the requested output format.
// Unknown formats fall back to text.
func NewLogger(format LogFormat) *logrus.Logger {
	logger := logrus.New()
	switch format {
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}
