package pipeline

// RunOptions is the immutable configuration handed to every stage at
// construction. Stages receive it by value and must not modify it.
type RunOptions struct {
	// StrictMode turns recoverable decode errors into fatal ones.
	StrictMode bool

	// KeepNameCollisions retains every entry whose record name collides with
	// another entry at the same timestamp. By default the first one wins.
	KeepNameCollisions bool

	// Logger receives stage diagnostics. Nil discards them.
	Logger Logger
}

// Log returns the configured logger, or a NopLogger if none was set.
func (o RunOptions) Log() Logger {
	if o.Logger == nil {
		return NopLogger{}
	}
	return o.Logger
}

// Logger provides structured logging for pipeline stages.
// The args follow slog conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
