package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// GetLogger returns the process-wide zap.Logger, built once on first use.
// GO_ENV=production switches to the JSON production config, anything else
// gets the human-readable development config.
func GetLogger() *zap.Logger {
	once.Do(func() {
		var err error
		if os.Getenv("GO_ENV") == "production" {
			logger, err = zap.NewProduction()
		} else {
			logger, err = zap.NewDevelopment()
		}
		if err != nil {
			panic("failed logger setup: " + err.Error())
		}
	})
	return logger
}
