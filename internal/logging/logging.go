package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a console logger in dev and a JSON production logger otherwise.
func New(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "dev" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build %s logger: %w", env, err)
	}
	return logger.With(zap.String("service", "disposal-pricing")), nil
}
