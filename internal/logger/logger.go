// Package logger builds the process-wide zap logger.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level maps a LOG_LEVEL name to a zap level.  Unknown names give info and
// false.
func Level(name string) (zapcore.Level, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return zapcore.InfoLevel, true
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}

// New returns a JSON logger writing to stderr.  An unknown level name is
// logged as a warning and the logger runs at info.
func New(level string) (*zap.Logger, error) {
	lvl, known := Level(level)
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if !known {
		log.Warn("unknown LOG_LEVEL, using info", zap.String("log_level", level))
	}
	return log, nil
}
