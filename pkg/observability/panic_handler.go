package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers a panic, logging the value and stack at Error level.
// For use in defer statements around background work (the cache sweeper, the
// cron scheduler) where a panic must not take the process down:
//
//	defer observability.RecoverPanic(logger, "cache sweep")
//
// The panic is swallowed, not re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
