package tool

import (
	"fmt"
	"time"

	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/internal/util"
	"github.com/hupe1980/promptline/logging"
)

// FunctionTool exposes a plain Go function as a Tool.
//
// Arguments are validated against the declared parameter schema before the
// function runs. Failures are normalized to *ToolError:
//
//	*ToolError returned by fn  -> forwarded unchanged
//	validation failure         -> Code VALIDATION_ERROR
//	other error                -> Code EXECUTION_ERROR
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
//
// Example:
//
//	ratingTool := tool.NewFunctionTool(
//	  "get_rating",
//	  "Look up the current rating of a player",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "player": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"player"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return ratings[args["player"].(string)], nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct
// (see util.CreateSchema for the supported tags).
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args then invokes the wrapped function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID(), "round", toolCtx.Round())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
			Cause:   err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		toolErr := AsToolError(t.name, CodeExecution, err)
		logging.LogToolCall(logger, t.name, time.Since(start), toolErr)

		return nil, toolErr
	}

	logging.LogToolCall(logger, t.name, time.Since(start), nil)

	return result, nil
}
