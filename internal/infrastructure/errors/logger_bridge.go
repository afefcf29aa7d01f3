package errors

import (
	"fmt"

	"widgethost/internal/infrastructure/logging"
)

// LoggerBridge routes retry messages into a structured logger at WARN level
type LoggerBridge struct {
	logger logging.Logger
}

// NewLoggerBridge wraps logger as a RetryLogger
func NewLoggerBridge(logger logging.Logger) RetryLogger {
	return &LoggerBridge{logger: logger}
}

func (b *LoggerBridge) Printf(format string, v ...interface{}) {
	if b.logger != nil {
		b.logger.Warn(fmt.Sprintf(format, v...), "component", "retry")
	}
}

// InstallRetryLogger routes retry messages to logger, or to a default logger when nil
func InstallRetryLogger(logger logging.Logger) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	SetRetryLogger(NewLoggerBridge(logger))
}
