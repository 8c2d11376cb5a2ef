// Package tool implements the callable capabilities a session may offer to
// its model: schema described functions whose invocations are validated,
// logged and recorded in the session transcript.
package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/internal/util"
)

// Tool is a function the model may call during a turn.
//
// Implementations should be safe for concurrent use: the same tool value can
// be bound to the persistent session and to ephemeral sessions at once.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes set by FunctionTool and the session's tool loop.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeArguments  = "INVALID_ARGUMENTS"
	CodeNotFound   = "TOOL_NOT_FOUND"
	CodePanic      = "PANIC"
)

// ToolError represents a failure of one tool invocation. It implements
// core.ToolFailure, so facade calls classify it as a tool call failure.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Cause   error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// ToolName returns the name of the failing tool.
func (e *ToolError) ToolName() string { return e.Tool }

// Unwrap returns the underlying failure, if any.
func (e *ToolError) Unwrap() error { return e.Cause }

var _ core.ToolFailure = (*ToolError)(nil)

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// AsToolError returns err as a *ToolError attributed to name: an existing
// ToolError in the chain is returned unchanged, anything else is wrapped
// with the given code.
func AsToolError(name, code string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}

	return &ToolError{Tool: name, Message: err.Error(), Code: code, Cause: err}
}

// Index maps tools by name. Duplicate or empty names are rejected.
func Index(tools []Tool) (map[string]Tool, error) {
	idx := make(map[string]Tool, len(tools))
	for _, t := range tools {
		if t == nil {
			return nil, errors.New("nil tool")
		}

		name := t.Name()
		if name == "" {
			return nil, errors.New("tool with empty name")
		}

		if _, dup := idx[name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}

		idx[name] = t
	}

	return idx, nil
}
