package logger

// Logger is the logging interface used across cdcsync. All packages log
// through it, allowing for flexible logger implementations.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...interface{})

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...interface{})

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...interface{})

	// Error logs an error-level message with the error and optional structured fields.
	Error(msg string, err error, fields ...interface{})
}

// Closeable is an optional interface for loggers that need cleanup,
// such as flushing buffered file output on shutdown.
type Closeable interface {
	Close() error
}

// NoOpLogger discards all messages. It is the default for tests and for
// embedding the core packages without logging.
type NoOpLogger struct{}

// Debug is a no-op implementation.
func (NoOpLogger) Debug(string, ...interface{}) {}

// Info is a no-op implementation.
func (NoOpLogger) Info(string, ...interface{}) {}

// Warn is a no-op implementation.
func (NoOpLogger) Warn(string, ...interface{}) {}

// Error is a no-op implementation.
func (NoOpLogger) Error(string, error, ...interface{}) {}

var _ Logger = NoOpLogger{}
