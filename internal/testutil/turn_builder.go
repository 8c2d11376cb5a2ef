package testutil

import (
	"strings"

	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/model"
)

// Turn is the scripted answer to one model request.
type Turn struct {
	deltas []string
	text   *string
	calls  []core.FunctionCall
	err    error
	// errAfter emits err after this many deltas (-1: instead of the final response).
	errAfter int
	block    bool
}

// TurnBuilder provides a fluent helper for scripting model answers.
// Example:
//
//	turn := NewTurn().Deltas("Hel", "lo").Build()
//	call := NewTurn().ToolCall("c1", "rating", `{"player":"Ann"}`).Build()
type TurnBuilder struct{ t Turn }

// NewTurn starts a turn script.
func NewTurn() *TurnBuilder { return &TurnBuilder{t: Turn{errAfter: -1}} }

// Deltas appends streamed text deltas. Unless Text overrides it, the final
// response text is their concatenation.
func (b *TurnBuilder) Deltas(ds ...string) *TurnBuilder {
	b.t.deltas = append(b.t.deltas, ds...)
	return b
}

// Text sets the final response text (chainable).
func (b *TurnBuilder) Text(s string) *TurnBuilder { b.t.text = &s; return b }

// ToolCall adds a function call to the final response (chainable).
func (b *TurnBuilder) ToolCall(id, name, args string) *TurnBuilder {
	b.t.calls = append(b.t.calls, core.FunctionCall{ID: id, Name: name, Arguments: args})
	return b
}

// FailAfter makes the turn fail with err after n deltas were emitted (chainable).
func (b *TurnBuilder) FailAfter(n int, err error) *TurnBuilder {
	b.t.errAfter, b.t.err = n, err
	return b
}

// Fail makes the turn fail with err instead of producing a response (chainable).
func (b *TurnBuilder) Fail(err error) *TurnBuilder { return b.FailAfter(0, err) }

// Block makes the turn wait for cancellation after emitting its deltas (chainable).
func (b *TurnBuilder) Block() *TurnBuilder { b.t.block = true; return b }

// Build returns the scripted turn.
func (b *TurnBuilder) Build() Turn { return b.t }

func (t Turn) finalText() string {
	if t.text != nil {
		return *t.text
	}
	return strings.Join(t.deltas, "")
}

func (t Turn) final() model.Response {
	parts := make([]core.Part, 0, len(t.calls)+1)
	if text := t.finalText(); text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}
	for _, c := range t.calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}

	finish := "stop"
	if len(t.calls) > 0 {
		finish = "tool_calls"
	}

	return model.Response{
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finish,
	}
}
