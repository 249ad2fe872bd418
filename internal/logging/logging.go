// Package logging builds the zap loggers used by every command.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a development-style console logger at level. It writes to
// stdout when console is set and appends to file when file is non-empty.
// With neither, logging is discarded.
func New(level, file string, console bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = nil
	if console {
		cfg.OutputPaths = append(cfg.OutputPaths, "stdout")
	}
	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
	}
	if len(cfg.OutputPaths) == 0 {
		return zap.NewNop(), nil
	}
	cfg.ErrorOutputPaths = []string{"stderr"}

	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	if console {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.DisableStacktrace = lvl != zapcore.DebugLevel
	if lvl != zapcore.DebugLevel {
		cfg.EncoderConfig.EncodeCaller = nil
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
