// Package logging defines the logging sink injected into solvers and
// the job distributor. Keeping the sink explicit keeps the numerical
// code free of global state and independently testable.
package logging

import "go.uber.org/zap"

// Logger is the minimal structured-logging surface the engine needs.
// The method shapes match zap's sugared logger so a zap instance can
// back it directly.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// NopLogger discards all messages. It is the default sink so callers
// that do not care about telemetry pay nothing.
type NopLogger struct{}

var _ Logger = NopLogger{}

// Nop returns a logger that discards everything.
func Nop() NopLogger { return NopLogger{} }

// Debug discards the message.
func (NopLogger) Debug(string, ...any) {}

// Info discards the message.
func (NopLogger) Info(string, ...any) {}

// Warn discards the message.
func (NopLogger) Warn(string, ...any) {}

// Error discards the message.
func (NopLogger) Error(string, ...any) {}

// ZapLogger adapts a zap logger to the Logger interface.
type ZapLogger struct {
	s *zap.SugaredLogger
}

var _ Logger = (*ZapLogger)(nil)

// NewZap wraps a zap logger.
func NewZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{s: l.Sugar()}
}

// Debug logs at debug level with structured key/value context.
func (z *ZapLogger) Debug(msg string, keysAndValues ...any) {
	z.s.Debugw(msg, keysAndValues...)
}

// Info logs at info level with structured key/value context.
func (z *ZapLogger) Info(msg string, keysAndValues ...any) {
	z.s.Infow(msg, keysAndValues...)
}

// Warn logs at warn level with structured key/value context.
func (z *ZapLogger) Warn(msg string, keysAndValues ...any) {
	z.s.Warnw(msg, keysAndValues...)
}

// Error logs at error level with structured key/value context.
func (z *ZapLogger) Error(msg string, keysAndValues ...any) {
	z.s.Errorw(msg, keysAndValues...)
}
