package logging

import "go.uber.org/zap"

// New builds the process logger. Console encoding in debug mode for local
// runs, JSON production config otherwise.
func New(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Encoding = "console"
	} else {
		cfg = zap.NewProductionConfig()
	}
	return cfg.Build()
}

// NewNop returns a discard logger for tests and optional wiring.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
