package advisor

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the structured logger used by the client and the engine.
// When debug is off it returns a no-op logger. When on, JSON logs at debug
// level go to logPath, or stderr if logPath is empty.
func NewLogger(debug bool, logPath string) (*zap.Logger, error) {
	if !debug {
		return zap.NewNop(), nil
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	config.Sampling = nil
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	if logPath != "" {
		config.OutputPaths = []string{logPath}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build debug logger: %w", err)
	}
	return logger.Named("advisor"), nil
}

// truncateForLog truncates a string for logging purposes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}
