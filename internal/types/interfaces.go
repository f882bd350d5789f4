package types

// Logger defines the structured logging interface used throughout the pipeline.
// Arguments are alternating key/value pairs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// NopLogger discards everything. Useful as a default in tests and tools.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
func (NopLogger) Warn(string, ...any)  {}
func (n NopLogger) With(...any) Logger { return n }
