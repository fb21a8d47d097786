package logger

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	Format string        `mapstructure:"log-format"`
	Level  zapcore.Level `mapstructure:"log-level"`
}

// NewConfig returns a new instance of Config with defaults.
func NewConfig() Config {
	return Config{
		Format: "auto",
		Level:  zapcore.InfoLevel,
	}
}

// ParseLevel parses a level name, rejecting unknown names.
func ParseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.Set(s); err != nil {
		return lvl, fmt.Errorf("unknown log level; supported levels are debug, info, warn, and error")
	}
	return lvl, nil
}
