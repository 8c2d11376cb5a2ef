// Package logging provides a minimal logging interface and slog-backed
// adapters for promptline.
//
// The Logger interface defines the four leveled methods that the engine,
// sessions and tools use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - StructuredLogger with component / session scoping
//   - NoOpLogger for silent operation (the default)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text"})
//	pl := promptline.New(m, func(o *promptline.Options) { o.Logger = logger })
package logging
