// Package logging provides structured JSON logging for the Shipmate server.
// It integrates with the controller-runtime logging framework and provides
// consistent log formatting across all components.
package logging

import (
	"os"

	"github.com/go-logr/logr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrlzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Config defines the logging configuration
type Config struct {
	// Level is the log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Format is the log format (json, console)
	Format string `yaml:"format" json:"format"`
}

// Logger wraps the controller-runtime logger with additional functionality
type Logger struct {
	logr.Logger
	config *Config
}

// DefaultConfig returns default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
	}
}

// NewLogger creates a new structured logger based on the provided configuration
func NewLogger(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	opts := ctrlzap.Options{
		Development: false,
	}

	// Configure based on format
	if config.Format == "json" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "time"
		encoderConfig.LevelKey = "level"
		encoderConfig.MessageKey = "msg"
		encoderConfig.CallerKey = "caller"
		encoderConfig.StacktraceKey = "stacktrace"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		opts.Encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		opts.Encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := parseZapLevel(config.Level)
	opts.Level = &level

	ctrlLogger := ctrlzap.New(ctrlzap.UseFlagOptions(&opts))

	return &Logger{
		Logger: ctrlLogger,
		config: config,
	}, nil
}

// parseZapLevel converts a string log level to zapcore.Level
func parseZapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// WithName returns a logger with the specified name
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		Logger: l.Logger.WithName(name),
		config: l.config,
	}
}

// WithValues returns a logger with the specified key-value pairs
func (l *Logger) WithValues(keysAndValues ...interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.WithValues(keysAndValues...),
		config: l.config,
	}
}

// WithDeployment returns a logger carrying the standard deployment
// correlation fields
func (l *Logger) WithDeployment(deployID, namespace, app string) *Logger {
	return &Logger{
		Logger: l.Logger.WithValues(
			"deployment_id", deployID,
			"namespace", namespace,
			"app", app,
		),
		config: l.config,
	}
}

// WithCampaign returns a logger configured for monitoring campaign operations
func (l *Logger) WithCampaign(app, namespace string) *Logger {
	return &Logger{
		Logger: l.Logger.WithName("monitor").WithValues(
			"app", app,
			"namespace", namespace,
		),
		config: l.config,
	}
}

// GetConfig returns the logging configuration
func (l *Logger) GetConfig() *Config {
	return l.config
}

// Discard returns a logger that drops everything it is given. Intended
// for tests.
func Discard() *Logger {
	return &Logger{
		Logger: logr.Discard(),
		config: DefaultConfig(),
	}
}

// GetLoggerFromEnv creates a logger from environment variables
func GetLoggerFromEnv() (*Logger, error) {
	config := &Config{
		Level:  getEnvOrDefault("SHIPMATE_LOG_LEVEL", "info"),
		Format: getEnvOrDefault("SHIPMATE_LOG_FORMAT", "json"),
	}

	return NewLogger(config)
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
