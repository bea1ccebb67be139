package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"optionscan/internal/config"
)

// New builds the process logger. Unknown levels fall back to info
// instead of failing startup.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:       cfg.Development,
		Encoding:          encoding(cfg.Encoding),
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: cfg.DisableStacktrace,
		EncoderConfig:     encoderConfig(cfg.Encoding),
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}

	if cfg.Sampling {
		zc.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

func parseLevel(s string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func encoding(s string) string {
	if s == "console" {
		return "console"
	}
	return "json"
}

func encoderConfig(enc string) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	if enc == "console" {
		ec = zap.NewDevelopmentEncoderConfig()
	}
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}
