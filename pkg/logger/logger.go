package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger interface defines the logging methods
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field represents a log field
type Field struct {
	Key   string
	Value interface{}
}

// Config controls how the logger is built
type Config struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string
	// Format is json or console (default: json)
	Format string
	// Output is stdout, stderr or a file path (default: stdout)
	Output string
	// Fields are attached to every entry
	Fields map[string]string
}

// zapLogger implements the Logger interface using zap
type zapLogger struct {
	logger *zap.Logger
}

// NewLogger creates a new logger instance
func NewLogger(cfg Config) Logger {
	logger, err := build(cfg)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	return &zapLogger{
		logger: logger,
	}
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

func build(cfg Config) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.StacktraceKey = "stacktrace"

	level, err := zapcore.ParseLevel(strings.ToLower(orDefault(cfg.Level, "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	config.Level = zap.NewAtomicLevelAt(level)

	switch strings.ToLower(orDefault(cfg.Format, "json")) {
	case "json":
		config.Encoding = "json"
	case "console", "text":
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	output := orDefault(cfg.Output, "stdout")
	config.OutputPaths = []string{output}
	config.ErrorOutputPaths = []string{"stderr"}

	if len(cfg.Fields) > 0 {
		config.InitialFields = make(map[string]interface{}, len(cfg.Fields))
		for k, v := range cfg.Fields {
			config.InitialFields[k] = v
		}
	}

	return config.Build(zap.AddCallerSkip(1))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Debug logs a debug message
func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, l.convertFields(fields...)...)
}

// Info logs an info message
func (l *zapLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, l.convertFields(fields...)...)
}

// Warn logs a warning message
func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, l.convertFields(fields...)...)
}

// Error logs an error message
func (l *zapLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, l.convertFields(fields...)...)
}

// Fatal logs a fatal message and terminates the program
func (l *zapLogger) Fatal(msg string, fields ...Field) {
	l.logger.Fatal(msg, l.convertFields(fields...)...)
}

// With returns a child logger carrying fields
func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{logger: l.logger.With(l.convertFields(fields...)...)}
}

// Sync flushes buffered entries
func Sync(l Logger) error {
	if zl, ok := l.(*zapLogger); ok {
		return zl.logger.Sync()
	}
	return nil
}

// convertFields converts logger.Field to zap.Field
func (l *zapLogger) convertFields(fields ...Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		zapFields = append(zapFields, zap.Any(field.Key, field.Value))
	}
	return zapFields
}

// Convenience functions to create fields
func String(key string, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Error(err error) Field {
	return Field{Key: "error", Value: err.Error()}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Strings is used for header lists
func Strings(key string, value []string) Field {
	return Field{Key: key, Value: value}
}
