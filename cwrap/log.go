package cwrap

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var pkgLogger = atomic.NewPointer(zap.NewNop())

// SetLogger installs the logger used for acquisition, release and handler
// diagnostics. Implicit release failures are reported only here.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	pkgLogger.Store(l)
}

func logger() *zap.Logger {
	return pkgLogger.Load()
}
