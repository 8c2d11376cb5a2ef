package core

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind classifies a transcript entry.
type EntryKind string

const (
	// EntryInstructions records the system instructions a session was created with.
	EntryInstructions EntryKind = "instructions"
	// EntryPrompt records a caller prompt.
	EntryPrompt EntryKind = "prompt"
	// EntryResponse records the final (unprocessed) model response of a turn.
	EntryResponse EntryKind = "response"
	// EntryToolCall records a tool invocation requested by the model.
	EntryToolCall EntryKind = "tool_call"
	// EntryToolOutput records the outcome of a tool invocation.
	EntryToolOutput EntryKind = "tool_output"
)

// Entry is one record of a session transcript. After it is appended it
// should be treated as immutable.
type Entry struct {
	ID        string        `json:"id"`
	Kind      EntryKind     `json:"kind"`
	Text      string        `json:"text,omitempty"`
	Call      *FunctionCall `json:"call,omitempty"`
	Output    any           `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewEntry creates a bare entry of the given kind.
// Prefer the helper constructors for the common kinds.
func NewEntry(kind EntryKind) Entry {
	return Entry{ID: NewID(), Kind: kind, Timestamp: time.Now().UTC()}
}

// NewInstructionsEntry records session instructions.
func NewInstructionsEntry(text string) Entry {
	e := NewEntry(EntryInstructions)
	e.Text = text
	return e
}

// NewPromptEntry records a prompt.
func NewPromptEntry(text string) Entry {
	e := NewEntry(EntryPrompt)
	e.Text = text
	return e
}

// NewResponseEntry records a model response.
func NewResponseEntry(text string) Entry {
	e := NewEntry(EntryResponse)
	e.Text = text
	return e
}

// NewToolCallEntry records a tool call request.
func NewToolCallEntry(fc FunctionCall) Entry {
	e := NewEntry(EntryToolCall)
	e.Call = &fc
	return e
}

// NewToolOutputEntry records the outcome of a tool call.
// If err is non-nil its message is copied into the Error field.
func NewToolOutputEntry(fc FunctionCall, output any, err error) Entry {
	e := NewEntry(EntryToolOutput)
	e.Call = &fc
	e.Output = output
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// NewID generates a new unique identifier for sessions and entries.
func NewID() string { return uuid.NewString() }

// IsToolRecord reports whether the entry belongs to a tool invocation.
func (e Entry) IsToolRecord() bool { return e.Kind == EntryToolCall || e.Kind == EntryToolOutput }
