package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/abhishek00112233/LMS-Backend/internal/logger"
)

// Logger receives recovered panics.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler runs goroutines that log instead of crashing the process on panic.
type RecoveryHandler struct {
	logger Logger
}

func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo runs fn on a new goroutine and recovers any panic.
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer rh.handlePanic("")
		fn()
	}()
}

// SafeGoWithContext is SafeGo for functions bound to ctx.
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer rh.handlePanic(" (with context)")
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) handlePanic(suffix string) {
	if r := recover(); r != nil {
		rh.logger.Errorf("panic in goroutine%s: %v\nstack trace:\n%s", suffix, r, debug.Stack())
	}
}

// SafeGo runs fn with the default handler, which reports to logger.Log.
func SafeGo(fn func()) {
	NewRecoveryHandler(logger.Log).SafeGo(fn)
}

// SafeGoWithContext runs fn with the default handler, which reports to logger.Log.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	NewRecoveryHandler(logger.Log).SafeGoWithContext(ctx, fn)
}
