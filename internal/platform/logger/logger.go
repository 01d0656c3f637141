package logger

import (
	"go.uber.org/zap"
)

// NewNamed creates a named zap logger for the given environment. Development
// gets a human-readable console logger; anything else gets production JSON.
func NewNamed(env, service string) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if env == "development" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return log.Named(service), nil
}
