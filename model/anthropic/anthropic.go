// Package anthropic provides a model.Model backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/model"
)

// Options configures the Anthropic model adapter. Temperature and MaxTokens
// are defaults; per-request generation options win.
type Options struct {
	Model       anthropic.Model
	Temperature *float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Model wraps the Anthropic Messages API behind the model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:     anthropic.ModelClaudeSonnet4_5,
		MaxTokens: 4096,
	}
}

// NewModel creates a new Anthropic model using the official client. The API
// key defaults to the ANTHROPIC_API_KEY environment variable.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate adapts a model.Request into a Messages call. Streaming requests
// emit partial text deltas followed by the final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)

		var err error
		if req.Stream {
			err = m.handleStreaming(ctx, params, req.ResponseSchema != nil, out)
		} else {
			err = m.handleNonStreaming(ctx, params, req.ResponseSchema != nil, out)
		}

		if err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// Availability implements model.AvailabilityChecker by retrieving the
// configured model from the Models API.
func (m *Model) Availability(ctx context.Context) model.Availability {
	if _, err := m.client.Models.Get(ctx, string(m.opts.Model), anthropic.ModelGetParams{}); err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return model.Unavailable(fmt.Sprintf("model %q not found", m.opts.Model))
		}
		return model.Unavailable(err.Error())
	}

	return model.Available
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     m.opts.Model,
		Messages:  buildMessages(req.Contents),
		MaxTokens: m.opts.MaxTokens,
	}

	if mt := req.Options.MaxTokens; mt != nil {
		params.MaxTokens = int64(*mt)
	}

	if t := req.Options.Temperature; t != nil {
		params.Temperature = anthropic.Float(*t)
	} else if m.opts.Temperature != nil {
		params.Temperature = anthropic.Float(*m.opts.Temperature)
	}

	switch s := req.Options.Sampling; s.Mode {
	case model.SamplingGreedy:
		params.Temperature = anthropic.Float(0)
	case model.SamplingTopK:
		params.TopK = anthropic.Int(int64(s.TopK))
	case model.SamplingTopP:
		params.TopP = anthropic.Float(s.TopP)
	}

	if system := systemBlocks(req); len(system) > 0 {
		params.System = system
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	return params
}

// systemBlocks collects instructions, system contents and, for schema
// guided requests, the JSON output contract. The Messages API has no
// response_format, so the schema travels as instructions.
func systemBlocks(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam

	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}

	for _, c := range req.Contents {
		if c.Role != core.RoleSystem {
			continue
		}
		if text := c.Text(); text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}

	if rs := req.ResponseSchema; rs != nil {
		schema, err := json.Marshal(rs.Schema)
		if err == nil {
			blocks = append(blocks, anthropic.TextBlockParam{Text: "Respond only with a single JSON value matching this JSON schema, without any surrounding prose:\n" + string(schema)})
		}
	}

	return blocks
}

// buildMessages converts normalized contents to Anthropic messages. Tool
// results travel as tool_result blocks of a user message.
func buildMessages(contents []core.Content) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, c := range contents {
		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			if blocks := assistantBlocks(c.Parts); len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}
		case core.RoleTool:
			if blocks := toolResultBlocks(c.Parts); len(blocks) > 0 {
				messages = append(messages, anthropic.NewUserMessage(blocks...))
			}
		default:
			if text := c.Text(); text != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		}
	}

	return messages
}

func assistantBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion

	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			var input any = map[string]any{}
			if part.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(part.FunctionCall.Arguments), &input); err != nil {
					input = part.FunctionCall.Arguments
				}
			}

			blocks = append(blocks, anthropic.NewToolUseBlock(part.FunctionCall.ID, input, part.FunctionCall.Name))
		}
	}

	return blocks
}

func toolResultBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion

	for _, p := range parts {
		fr, ok := p.(core.FunctionResponsePart)
		if !ok {
			continue
		}

		resp := fr.FunctionResponse
		if resp.Error != "" {
			blocks = append(blocks, anthropic.NewToolResultBlock(resp.ID, resp.Error, true))
			continue
		}

		text, isStr := resp.Response.(string)
		if !isStr {
			b, err := json.Marshal(resp.Response)
			if err != nil {
				text = fmt.Sprintf("%v", resp.Response)
			} else {
				text = string(b)
			}
		}

		blocks = append(blocks, anthropic.NewToolResultBlock(resp.ID, text, false))
	}

	return blocks
}

func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, t := range tools {
		var schema anthropic.ToolInputSchemaParam

		if params := t.Function.Parameters; params != nil {
			if properties, ok := params["properties"]; ok {
				schema.Properties = properties
			}

			switch req := params["required"].(type) {
			case []string:
				schema.Required = req
			case []any:
				for _, r := range req {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		}

		out[i] = anthropic.ToolUnionParamOfTool(schema, t.Function.Name)
		if t.Function.Description != "" {
			out[i].OfTool.Description = anthropic.String(t.Function.Description)
		}
	}

	return out
}

func (m *Model) handleNonStreaming(ctx context.Context, params anthropic.MessageNewParams, schema bool, out chan<- model.Response) error {
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return fmt.Errorf("anthropic api error: %w", err)
	}

	if !send(ctx, out, finalResponse(resp, schema)) {
		return ctx.Err()
	}

	return nil
}

func (m *Model) handleStreaming(ctx context.Context, params anthropic.MessageNewParams, schema bool, out chan<- model.Response) error {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var msg anthropic.Message

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return fmt.Errorf("anthropic stream accumulate: %w", err)
		}

		ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}

		delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
		if !ok || delta.Text == "" {
			continue
		}

		if !send(ctx, out, model.Response{
			ID:      msg.ID,
			Partial: true,
			Content: core.NewTextContent(core.RoleAssistant, delta.Text),
		}) {
			return ctx.Err()
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic streaming error: %w", err)
	}

	if !send(ctx, out, finalResponse(&msg, schema)) {
		return ctx.Err()
	}

	return nil
}

func finalResponse(msg *anthropic.Message, schema bool) model.Response {
	var (
		parts []core.Part
		text  strings.Builder
	)

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: string(b.Input),
			}})
		}
	}

	if text.Len() > 0 {
		t := text.String()
		if schema {
			t = stripCodeFence(t)
		}
		parts = append([]core.Part{core.TextPart{Text: t}}, parts...)
	}

	finishReason := "stop"
	if msg.StopReason != "" {
		finishReason = string(msg.StopReason)
	}

	return model.Response{
		ID:           msg.ID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// stripCodeFence removes a surrounding Markdown code fence from JSON output.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}

	t = strings.TrimSuffix(t[3:], "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.ContainsAny(t[:nl], "{[\"") {
		t = t[nl+1:]
	}

	return strings.TrimSpace(t)
}

func send(ctx context.Context, out chan<- model.Response, r model.Response) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- r:
		return true
	}
}

var (
	_ model.Model               = (*Model)(nil)
	_ model.AvailabilityChecker = (*Model)(nil)
)
