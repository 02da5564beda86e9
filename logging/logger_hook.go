package logging

import (
	"log/slog"
)

// LoggerHook derives scope-specific loggers from a base logger. Pipeline builders call it
// once per pipeline so each pipeline's records can be told apart.
type LoggerHook interface {
	LoggerForScope(base *slog.Logger, scope string) *slog.Logger
}

// CapturingLoggerHook creates loggers that capture logs via CapturingHandler.
type CapturingLoggerHook struct {
	collector *LogCollector
}

// NewCapturingLoggerHook creates a hook that captures every record under its scope.
func NewCapturingLoggerHook(collector *LogCollector) LoggerHook {
	return &CapturingLoggerHook{
		collector: collector,
	}
}

// LoggerForScope wraps the base logger's handler with a CapturingHandler for scope.
func (p *CapturingLoggerHook) LoggerForScope(base *slog.Logger, scope string) *slog.Logger {
	return slog.New(NewCapturingHandler(base.Handler(), p.collector, scope))
}
