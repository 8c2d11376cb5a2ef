package model

import (
	"context"
	"fmt"

	"github.com/hupe1980/promptline/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SamplingMode selects the token sampling strategy.
type SamplingMode string

const (
	// SamplingDefault leaves sampling to the runtime.
	SamplingDefault SamplingMode = ""
	// SamplingGreedy always picks the most likely token.
	SamplingGreedy SamplingMode = "greedy"
	// SamplingTopK samples among the K most likely tokens.
	SamplingTopK SamplingMode = "top_k"
	// SamplingTopP samples from the smallest token set whose mass exceeds P.
	SamplingTopP SamplingMode = "top_p"
)

// Sampling configures token sampling. TopK is used by SamplingTopK, TopP by
// SamplingTopP; Seed (optional) makes random sampling reproducible where the
// runtime supports it.
type Sampling struct {
	Mode SamplingMode `json:"mode,omitempty" yaml:"mode"`
	TopK int          `json:"top_k,omitempty" yaml:"top_k"`
	TopP float64      `json:"top_p,omitempty" yaml:"top_p"`
	Seed *int64       `json:"seed,omitempty" yaml:"seed"`
}

// Validate checks that the parameters required by Mode are in range.
func (s Sampling) Validate() error {
	switch s.Mode {
	case SamplingDefault, SamplingGreedy:
		return nil
	case SamplingTopK:
		if s.TopK < 1 {
			return fmt.Errorf("sampling top_k must be >= 1, got %d", s.TopK)
		}
		return nil
	case SamplingTopP:
		if s.TopP <= 0 || s.TopP > 1 {
			return fmt.Errorf("sampling top_p must be in (0, 1], got %g", s.TopP)
		}
		return nil
	default:
		return fmt.Errorf("unknown sampling mode %q", s.Mode)
	}
}

// GenerationOptions are the per-request generation knobs. Nil pointers leave
// the runtime's defaults in place.
type GenerationOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Sampling    Sampling `json:"sampling,omitzero"`
}

// ResponseSchema asks the runtime to produce JSON matching Schema.
type ResponseSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	// Strict requests exact schema adherence where the provider supports it.
	Strict bool `json:"strict,omitempty"`
}

// Request captures the normalized model input produced by a session turn.
type Request struct {
	Instructions   string            `json:"instructions"`
	Contents       []core.Content    `json:"contents"`
	Tools          []ToolDefinition  `json:"tools,omitempty"`
	Stream         bool              `json:"stream,omitempty"`
	Options        GenerationOptions `json:"options,omitzero"`
	ResponseSchema *ResponseSchema   `json:"response_schema,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial text
// responses carry only the newly generated delta; the final response carries
// the complete content of the turn.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the runtime contract sessions drive.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Availability is a model's readiness to serve requests.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Available is the status of a ready model.
var Available = Availability{Available: true}

// Unavailable returns a not-ready status carrying reason.
func Unavailable(reason string) Availability {
	return Availability{Reason: reason}
}

// AvailabilityChecker is implemented by models that can report readiness
// independently of generation.
type AvailabilityChecker interface {
	Availability(ctx context.Context) Availability
}

// Prewarmer is implemented by models that can reduce first-response latency
// when told a prompt is coming. Prewarming is a hint and has no result.
type Prewarmer interface {
	Prewarm(ctx context.Context, promptPrefix string)
}

// CheckAvailability queries m if it implements AvailabilityChecker and
// reports it available otherwise.
func CheckAvailability(ctx context.Context, m Model) Availability {
	if m == nil {
		return Unavailable("no model configured")
	}

	if c, ok := m.(AvailabilityChecker); ok {
		return c.Availability(ctx)
	}

	return Available
}

// Drain collects the final response of a non-streaming Generate call.
// It returns the first error reported by the model, if any.
func Drain(ctx context.Context, respCh <-chan Response, errCh <-chan error) (Response, error) {
	var (
		final Response
		seen  bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !r.Partial {
				final, seen = r, true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if !seen {
		return Response{}, fmt.Errorf("model returned no final response")
	}

	return final, nil
}
