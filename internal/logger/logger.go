package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger for the given environment.
// prod uses JSON output, local/dev use colored console output.
// levelOverride (if non-empty) overrides the log level: debug, info, warn, error.
func NewLogger(env string, levelOverride ...string) (*zap.Logger, error) {
	level := ""
	if len(levelOverride) > 0 {
		level = levelOverride[0]
	}
	l, _, err := NewLeveled(env, level)
	return l, err
}

// NewLeveled is NewLogger that also returns the AtomicLevel backing the
// logger, so callers can change verbosity at runtime.
func NewLeveled(env, level string) (*zap.Logger, zap.AtomicLevel, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("unknown environment %q for logger", env)
	}

	if level != "" {
		lvl, err := ParseLevel(level)
		if err != nil {
			return nil, zap.AtomicLevel{}, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("build logger: %w", err)
	}
	return l, cfg.Level, nil
}

func ParseLevel(text string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(text)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", text, err)
	}
	return level, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
