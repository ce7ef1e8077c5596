package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger wraps zerolog.Logger with component helpers
type Logger struct {
	zerolog.Logger
	level  zerolog.Level
	output io.Writer
}

// Config represents logger configuration
type Config struct {
	// Log level (debug, info, warn, error, disabled)
	Level string `toml:"level"`

	// Output destination (stdout, stderr, or file path)
	Output string `toml:"output"`

	// Enable colored console output
	Color bool `toml:"color"`

	Timestamp bool `toml:"timestamp"`

	// Enable caller information (file:line)
	Caller bool `toml:"caller"`
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:     "error",
		Output:    "stderr",
		Color:     true,
		Timestamp: true,
		Caller:    false,
	}
}

var globalLogger *Logger

// Init initializes the global logger with the provided configuration
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}

	var output io.Writer
	switch config.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(config.Output), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
	}

	if (config.Output == "stdout" || config.Output == "stderr" || config.Output == "") && config.Color {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	l := zerolog.New(output).Level(level)
	if config.Timestamp {
		l = l.With().Timestamp().Logger()
	}
	if config.Caller {
		l = l.With().Caller().Logger()
	}

	globalLogger = &Logger{
		Logger: l,
		level:  level,
		output: output,
	}
	log.Logger = globalLogger.Logger

	return nil
}

// Discard installs a logger that drops everything. Tests use it to keep output quiet.
func Discard() {
	globalLogger = &Logger{
		Logger: zerolog.Nop(),
		level:  zerolog.Disabled,
		output: io.Discard,
	}
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	if globalLogger == nil {
		_ = Init(DefaultConfig())
	}
	return globalLogger
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(l.Logger.With().Interface(key, value).Logger())
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.Logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return l.derive(ctx.Logger())
}

// WithError adds an error field to the logger context
func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.Logger.With().Err(err).Logger())
}

// WithComponent adds a component field for structured logging
func (l *Logger) WithComponent(component string) *Logger {
	return l.derive(l.Logger.With().Str("component", component).Logger())
}

// WithOperation adds an operation field for structured logging
func (l *Logger) WithOperation(operation string) *Logger {
	return l.derive(l.Logger.With().Str("operation", operation).Logger())
}

// WithSessionID adds a session ID field
func (l *Logger) WithSessionID(sessionID string) *Logger {
	return l.derive(l.Logger.With().Str("session_id", sessionID).Logger())
}

func (l *Logger) derive(zl zerolog.Logger) *Logger {
	return &Logger{Logger: zl, level: l.level, output: l.output}
}

// History creates a logger with history context
func (l *Logger) History() *Logger {
	return l.WithComponent("history")
}

// Lock creates a logger with file lock context
func (l *Logger) Lock() *Logger {
	return l.WithComponent("filelock")
}

// Config creates a logger with configuration context
func (l *Logger) Config() *Logger {
	return l.WithComponent("config")
}

// Performance logs how long an operation took
func (l *Logger) Performance(operation string, duration time.Duration, fields map[string]interface{}) {
	evt := l.Debug().
		Str("perf_operation", operation).
		Dur("duration", duration)
	for key, value := range fields {
		evt = evt.Interface(key, value)
	}
	evt.Msg("performance metric")
}

// WithComponent returns the global logger tagged with component
func WithComponent(component string) *Logger {
	return GetLogger().WithComponent(component)
}
