// Package logger builds the zap logger shared by the server components.
package logger

import (
	"strings"

	"go.uber.org/zap"
)

// NewLogger создаёт и возвращает новый экземпляр логгера.
// Level "debug" (or empty) gives the development encoder, any other level the
// production JSON encoder at that level.
func NewLogger(level ...string) (*zap.SugaredLogger, error) {
	lvl := ""
	if len(level) > 0 {
		lvl = strings.ToLower(strings.TrimSpace(level[0]))
	}

	if lvl == "" || lvl == "debug" {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		return logger.Sugar(), nil
	}

	atomic, err := zap.ParseAtomicLevel(lvl)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = atomic
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
