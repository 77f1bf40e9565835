// Package logging builds the zap logger used by metacore binaries and adapts
// it to the key/value logging surface of the core service.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config represents logger configuration
type Config struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	Encoding    string   `yaml:"encoding"` // json or console
	OutputPaths []string `yaml:"output_paths"`
}

// New creates a zap logger from cfg. Empty fields default to info level,
// json encoding and stderr output.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
	}
	if encoding != "json" && encoding != "console" {
		return nil, fmt.Errorf("invalid log encoding %q", encoding)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Development && encoding == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return logger, nil
}

// ServiceLogger adapts a zap logger to the service's Debug/Info/Warn/Error
// methods taking alternating key/value pairs.
type ServiceLogger struct {
	sugar *zap.SugaredLogger
}

// NewServiceLogger wraps l; a nil logger discards everything.
func NewServiceLogger(l *zap.Logger) *ServiceLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ServiceLogger{sugar: l.Sugar()}
}

func (s *ServiceLogger) Debug(msg string, kv ...any) { s.sugar.Debugw(msg, kv...) }
func (s *ServiceLogger) Info(msg string, kv ...any)  { s.sugar.Infow(msg, kv...) }
func (s *ServiceLogger) Warn(msg string, kv ...any)  { s.sugar.Warnw(msg, kv...) }
func (s *ServiceLogger) Error(msg string, kv ...any) { s.sugar.Errorw(msg, kv...) }
