// Package session implements the conversational context promptline calls
// run against.
//
// A Session is bound at creation to a model, a tool set and instructions and
// never changes those bindings. Each turn appends the prompt, every tool call
// and tool output, and the final response to an append-only transcript. When
// the model requests tools, the session executes them against its bound set
// and sends the results back until the model answers with text or the tool
// round limit is reached.
//
// Sessions keep everything in memory; nothing survives the process.
package session
