package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/promptline/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolCtx(name string) *core.ToolContext {
	return core.NewToolContext(context.Background(), core.ToolContextOptions{
		SessionID:      "s1",
		FunctionCallID: "fc1",
		ToolName:       name,
		Round:          1,
	})
}

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(toolCtx("sum"), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "number"}},
		"required":   []string{"a"},
	}
	called := false
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		called = true
		return 0, nil
	})

	_, err := tTool.Call(toolCtx("test"), map[string]any{})
	require.Error(t, err)
	assert.False(t, called)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	boom := errors.New("boom")
	execTool := NewFunctionTool("fail", "Fails", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, boom
	})

	_, err := execTool.Call(toolCtx("fail"), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "fail", toolErr.ToolName())
	assert.ErrorIs(t, err, boom)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("lookup", "player not found", "NOT_FOUND")
	lookup := NewFunctionTool("lookup", "Lookup", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, fmt.Errorf("wrapped: %w", custom)
	})

	_, err := lookup.Call(toolCtx("lookup"), nil)
	assert.Same(t, custom, err)
}

type ratingArgs struct {
	Player string `json:"player" description:"Player name"`
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	rating := NewFunctionToolFromStruct("rating", "Rating lookup", ratingArgs{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return len(args["player"].(string)), nil
	})

	assert.Equal(t, "rating", rating.Name())
	assert.Equal(t, "Rating lookup", rating.Description())
	assert.Equal(t, []string{"player"}, rating.Parameters()["required"])

	_, err := rating.Call(toolCtx("rating"), map[string]any{"player": 7.0})
	assert.Error(t, err)

	res, err := rating.Call(toolCtx("rating"), map[string]any{"player": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, 3, res)
}

func TestToolError_IsToolFailure(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")

	classified := core.Classify(fmt.Errorf("turn: %w", err))

	var tce *core.ToolCallError
	require.ErrorAs(t, classified, &tce)
	assert.Equal(t, "demo", tce.ToolName)
	assert.ErrorIs(t, classified, core.ErrToolCallFailed)
}

func TestAsToolError(t *testing.T) {
	plain := errors.New("x")
	te := AsToolError("a", CodePanic, plain)
	assert.Equal(t, "a", te.Tool)
	assert.Equal(t, CodePanic, te.Code)
	assert.ErrorIs(t, te, plain)

	assert.Same(t, te, AsToolError("b", CodeExecution, te))
}

func TestIndex(t *testing.T) {
	noop := func(_ *core.ToolContext, _ map[string]any) (any, error) { return nil, nil }
	a := NewFunctionTool("a", "", nil, noop)
	b := NewFunctionTool("b", "", nil, noop)

	idx, err := Index([]Tool{a, b})
	require.NoError(t, err)
	assert.Len(t, idx, 2)
	assert.Same(t, b, idx["b"])

	_, err = Index([]Tool{a, NewFunctionTool("a", "", nil, noop)})
	assert.ErrorContains(t, err, "duplicate")

	_, err = Index([]Tool{NewFunctionTool("", "", nil, noop)})
	assert.Error(t, err)

	idx, err = Index(nil)
	require.NoError(t, err)
	assert.Empty(t, idx)
}
