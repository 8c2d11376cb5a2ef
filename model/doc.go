// Package model defines the provider-agnostic contract between promptline
// sessions and a text-generation runtime.
//
// A Model receives a normalized Request (instructions, role based contents,
// tool definitions, generation options and an optional response schema) and
// answers on a pair of channels. Streaming requests emit partial text deltas
// followed by one final response; non-streaming requests emit only the final
// response. Tool calls requested by the model arrive as function call parts
// of the final response.
//
// Two optional capabilities may be implemented alongside Model:
// AvailabilityChecker reports readiness independently of generation and
// Prewarmer accepts a latency hint. Provider adapters live in the openai and
// anthropic subpackages; MockModel serves tests and examples.
package model
