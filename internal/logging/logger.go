package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "MULTY_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks MULTY_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	zapLevel, err := ParseLevel(level)
	if err != nil {
		// Unknown level - use info as default when explicitly set to something
		zapLevel = zapcore.InfoLevel
	}

	// stdout carries command output (JSON snapshots, event lines), so logs go to stderr
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// InitializeFromEnv initializes the logger from the MULTY_LOG_LEVEL
// environment variable.
func InitializeFromEnv() error {
	return Initialize("")
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Fallback to silent logger if not initialized
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogCall logs the outcome of one ZAPI call attempt
func LogCall(call string, messageID int64, attempt int, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("call", call),
		zap.Int64("message_id", messageID),
		zap.Int("attempt", attempt),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		Debug("ZAPI call failed", append(fields, zap.Error(err))...)
		return
	}
	Debug("ZAPI call completed", fields...)
}

// LogChange logs a single state change event
func LogChange(resource, kind, entity string, fields int) {
	Info("State change",
		zap.String("resource", resource),
		zap.String("kind", kind),
		zap.String("entity", entity),
		zap.Int("changed_fields", fields),
	)
}

// LogAvailability logs a resource becoming unavailable or recovering
func LogAvailability(resource string, available bool, cause error) {
	if available {
		Info("Resource recovered", zap.String("resource", resource))
		return
	}
	Warn("Resource unavailable",
		zap.String("resource", resource),
		zap.Error(cause),
	)
}

// LogConnection logs an event stream subscriber event
func LogConnection(remoteAddr string, event string) {
	Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogHTTPRequest logs an HTTP request served by the event stream
func LogHTTPRequest(remoteAddr string, method string, path string, status int) {
	Info("HTTP request",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", status),
	)
}

// LogRawBytes logs raw envelope bytes (useful for debugging firmware variants)
func LogRawBytes(direction string, host string, data []byte) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	Debug("ZAPI envelope",
		zap.String("direction", direction),
		zap.String("host", host),
		zap.Int("length", len(data)),
		zap.String("ascii", asciiDump(data)),
		zap.String("hex", hexDump(data)),
	)
}

// Helper functions

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	// Limit to first 256 bytes for logging
	if len(data) > 256 {
		return hex.EncodeToString(data[:256]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > 1024 {
		data = data[:1024]
	}

	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
