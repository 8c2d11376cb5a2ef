package session

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/tool"
)

// executeCalls runs the calls of one round in order. Every call and its
// outcome are recorded in the transcript. The first failing call ends the
// round with a *tool.ToolError; later calls are not executed.
func (s *Session) executeCalls(ctx context.Context, calls []core.FunctionCall, round int) ([]core.Part, error) {
	parts := make([]core.Part, 0, len(calls))

	for _, fc := range calls {
		if err := ctx.Err(); err != nil {
			return parts, err
		}

		if fc.ID == "" {
			fc.ID = core.NewID()
		}

		s.record(core.NewToolCallEntry(fc))

		toolCtx := core.NewToolContext(ctx, core.ToolContextOptions{
			SessionID:      s.id,
			FunctionCallID: fc.ID,
			ToolName:       fc.Name,
			Round:          round,
			Logger:         s.logger,
		})

		start := time.Now()
		result, err := s.executeSafely(toolCtx, fc)

		s.logger.Info(
			"tool.call.executed",
			"session_id", s.id,
			"tool", fc.Name,
			"round", round,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err != nil,
		)

		s.record(core.NewToolOutputEntry(fc, result, err))

		resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
		if err != nil {
			resp.Error = err.Error()
		}
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: resp})

		if err != nil {
			return parts, err
		}
	}

	return parts, nil
}

// executeSafely looks up and invokes the tool, converting every failure
// (including panics) into a *tool.ToolError.
func (s *Session) executeSafely(toolCtx *core.ToolContext, fc core.FunctionCall) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool.call.panic", "session_id", s.id, "tool", fc.Name, "recover", fmt.Sprint(r))
			result = nil
			err = &tool.ToolError{
				Tool:    fc.Name,
				Message: fmt.Sprintf("panic: %v", r),
				Code:    tool.CodePanic,
				Details: string(debug.Stack()),
			}
		}
	}()

	impl, ok := s.registry[fc.Name]
	if !ok {
		return nil, tool.NewToolError(fc.Name, "tool not found", tool.CodeNotFound)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, &tool.ToolError{
				Tool:    fc.Name,
				Message: fmt.Sprintf("failed to unmarshal args: %v", err),
				Code:    tool.CodeArguments,
				Cause:   err,
			}
		}
	}

	result, err = impl.Call(toolCtx, args)
	if err != nil {
		return nil, tool.AsToolError(fc.Name, tool.CodeExecution, err)
	}

	return result, nil
}
