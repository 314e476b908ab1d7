package instrument

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/ilrewrite/instrument/internal/engine"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the instrument package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the logger for the instrument package and its
// planner.
func SetLogger(l *zap.Logger) {
	logger = l
	engine.SetLogger(l)
}
