// Package core provides the foundational types shared by every promptline
// package:
//
//   - the failure taxonomy (ModelUnavailableError, ContextEncodingError,
//     GenerationError, ToolCallError) and Classify, which maps any error onto it
//   - role based Content made of Parts (text, function calls and responses)
//     exchanged with models
//   - transcript Entries recorded by sessions
//   - ToolContext, the scoped surface handed to tool implementations
//
// The package has no dependencies on models, sessions or the engine, so all
// of them can share these types without import cycles.
package core
