package utils

import (
	"sync/atomic"

	"github.com/campanio/backend/internal/logger"
)

var pkgLogger atomic.Pointer[logger.Logger]

// SetLogger routes the response helpers' diagnostics to l. Until it is called
// they are discarded.
func SetLogger(l *logger.Logger) {
	pkgLogger.Store(l)
}

func currentLogger() *logger.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return logger.Nop()
}
