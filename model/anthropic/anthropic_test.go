package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)

	return NewModelFromClient(&client, func(o *Options) { o.Model = "claude-test" })
}

func TestBuildParams(t *testing.T) {
	m := NewModelFromClient(nil)
	maxTokens := 256

	params := m.buildParams(model.Request{
		Instructions: "Be brief.",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, "hi")},
		Options: model.GenerationOptions{
			MaxTokens: &maxTokens,
			Sampling:  model.Sampling{Mode: model.SamplingTopK, TopK: 40},
		},
		ResponseSchema: &model.ResponseSchema{Name: "x", Schema: map[string]any{"type": "object"}},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name:        "rating",
			Description: "Look up a rating",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}, "required": []any{"player"}},
		}}},
	})

	assert.Equal(t, anthropic.ModelClaudeSonnet4_5, params.Model)
	assert.Equal(t, int64(256), params.MaxTokens)
	assert.Equal(t, int64(40), params.TopK.Value)
	require.Len(t, params.System, 2)
	assert.Equal(t, "Be brief.", params.System[0].Text)
	assert.Contains(t, params.System[1].Text, `{"type":"object"}`)

	require.Len(t, params.Tools, 1)
	assert.Equal(t, []string{"player"}, params.Tools[0].OfTool.InputSchema.Required)
	assert.Equal(t, "Look up a rating", params.Tools[0].OfTool.Description.Value)
}

func TestBuildMessages_ToolResultsAsUserTurn(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewTextContent(core.RoleUser, "rating?"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "rating", Arguments: `{"player":"Ann"}`}}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "t1", Name: "rating", Error: "not found"}}}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)

	raw, err := json.Marshal(msgs[2])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"tool_result"`)
	assert.Contains(t, string(raw), `"is_error":true`)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}

func TestGenerate_NonStreaming(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"claude-test"`)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"Rating 1718.58"},{"type":"tool_use","id":"t1","name":"rating","input":{"player":"Ann"}}],
			"stop_reason":"tool_use","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":2}}`)
	})

	respCh, errCh := m.Generate(context.Background(), model.Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")}})
	resp, err := model.Drain(context.Background(), respCh, errCh)
	require.NoError(t, err)

	assert.Equal(t, "Rating 1718.58", resp.Content.Text())
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "rating", calls[0].Name)
	assert.JSONEq(t, `{"player":"Ann"}`, calls[0].Arguments)
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestAvailability(t *testing.T) {
	available := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/claude-test", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"claude-test","type":"model","display_name":"Claude","created_at":"2025-01-01T00:00:00Z"}`)
	})
	assert.True(t, available.Availability(context.Background()).Available)

	missing := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"type":"error","error":{"type":"not_found_error","message":"model not found"}}`)
	})
	a := missing.Availability(context.Background())
	assert.False(t, a.Available)
	assert.Contains(t, a.Reason, "claude-test")
}
