package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/promptline/model"
	"github.com/hupe1980/promptline/postprocess"
	"github.com/hupe1980/promptline/prompt"
	"github.com/hupe1980/promptline/session"
	"github.com/hupe1980/promptline/tool"
)

// Config is the long-lived configuration of an Engine. It is copied at
// construction and never mutated by a call.
//
// Example:
//
//	cfg := engine.Config{
//	    Instructions:   "You are a chess commentator.",
//	    Model:          m,
//	    PostProcessing: postprocess.Spec{Trim: true, RoundDecimals: postprocess.Places(0)},
//	}
type Config struct {
	// Instructions seed every session, persistent or ephemeral.
	Instructions string
	Model        model.Model
	Tools        []tool.Tool
	Temperature  *float64
	MaxTokens    *int
	Sampling     model.Sampling
	Context      prompt.ContextOptions
	// PostProcessing normalizes text results and stream chunks.
	PostProcessing postprocess.Spec
	// MaxToolRounds caps tool rounds per turn (0 = session default).
	MaxToolRounds int
}

// Validate checks the configuration before an Engine is built from it.
func (c Config) Validate() error {
	var errs []error

	if c.Model == nil {
		errs = append(errs, errors.New("model is required"))
	}

	if c.Temperature != nil && *c.Temperature < 0 {
		errs = append(errs, fmt.Errorf("temperature must be >= 0, got %g", *c.Temperature))
	}

	if c.MaxTokens != nil && *c.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("max tokens must be >= 1, got %d", *c.MaxTokens))
	}

	if err := c.Sampling.Validate(); err != nil {
		errs = append(errs, err)
	}

	if !c.Context.Format.Valid() {
		errs = append(errs, fmt.Errorf("unknown context format %q", c.Context.Format))
	}

	if err := c.PostProcessing.Validate(); err != nil {
		errs = append(errs, err)
	}

	if _, err := tool.Index(c.Tools); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("engine: invalid config: %w", err)
	}

	return nil
}

// Override holds per-call overrides. A nil field is absent and leaves the
// configured value in place.
type Override struct {
	Model          model.Model
	Tools          *[]tool.Tool
	Temperature    *float64
	MaxTokens      *int
	Sampling       *model.Sampling
	Context        *prompt.ContextOptions
	PostProcessing *postprocess.Spec
	// IncludeSchema injects the output schema into the prompt of
	// schema-guided calls.
	IncludeSchema bool
}

// CallOption sets one field of an Override.
type CallOption func(o *Override)

// NewOverride applies opts to an empty Override.
func NewOverride(opts ...CallOption) Override {
	var ov Override
	for _, fn := range opts {
		if fn != nil {
			fn(&ov)
		}
	}
	return ov
}

// WithModel runs the call on m in an ephemeral session.
func WithModel(m model.Model) CallOption {
	return func(o *Override) { o.Model = m }
}

// WithTools runs the call with the given tool set in an ephemeral session.
// An empty list overrides the configured tools with none.
func WithTools(tools ...tool.Tool) CallOption {
	return func(o *Override) {
		ts := append([]tool.Tool{}, tools...)
		o.Tools = &ts
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(o *Override) { o.Temperature = &t }
}

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int) CallOption {
	return func(o *Override) { o.MaxTokens = &n }
}

// WithSampling overrides the sampling mode.
func WithSampling(s model.Sampling) CallOption {
	return func(o *Override) { o.Sampling = &s }
}

// WithContextOptions overrides how structured context is embedded.
func WithContextOptions(c prompt.ContextOptions) CallOption {
	return func(o *Override) { o.Context = &c }
}

// WithPostProcessing overrides the post-processing spec.
func WithPostProcessing(s postprocess.Spec) CallOption {
	return func(o *Override) { o.PostProcessing = &s }
}

// WithSchemaInPrompt appends the output schema to the prompt of schema-guided calls.
func WithSchemaInPrompt() CallOption {
	return func(o *Override) { o.IncludeSchema = true }
}

// Effective is the per-field merge of a Config and an Override.
type Effective struct {
	Model          model.Model
	Tools          []tool.Tool
	Options        model.GenerationOptions
	Context        prompt.ContextOptions
	PostProcessing postprocess.Spec
	IncludeSchema  bool
}

// Merge resolves every overridable field independently: the override wins
// when present, otherwise the configured value is used.
func Merge(cfg Config, ov Override) Effective {
	eff := Effective{
		Model: cfg.Model,
		Tools: cfg.Tools,
		Options: model.GenerationOptions{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Sampling:    cfg.Sampling,
		},
		Context:        cfg.Context,
		PostProcessing: cfg.PostProcessing,
		IncludeSchema:  ov.IncludeSchema,
	}

	if ov.Model != nil {
		eff.Model = ov.Model
	}
	if ov.Tools != nil {
		eff.Tools = *ov.Tools
	}
	if ov.Temperature != nil {
		eff.Options.Temperature = ov.Temperature
	}
	if ov.MaxTokens != nil {
		eff.Options.MaxTokens = ov.MaxTokens
	}
	if ov.Sampling != nil {
		eff.Options.Sampling = *ov.Sampling
	}
	if ov.Context != nil {
		eff.Context = *ov.Context
	}
	if ov.PostProcessing != nil {
		eff.PostProcessing = *ov.PostProcessing
	}

	return eff
}

// SessionDecision tells whether a call runs on the persistent session.
type SessionDecision int

const (
	// ReuseSession runs the call on the current persistent session.
	ReuseSession SessionDecision = iota
	// NewSession runs the call on a fresh ephemeral session.
	NewSession
)

func (d SessionDecision) String() string {
	if d == NewSession {
		return "new"
	}
	return "reuse"
}

// Decide returns NewSession when the override supplies a model or a tool
// set, since both are bound at session creation. Any other override reuses
// the persistent session.
func Decide(ov Override) SessionDecision {
	if ov.Model != nil || ov.Tools != nil {
		return NewSession
	}
	return ReuseSession
}

// SessionBuilder creates a session bound to a model, tools and instructions.
type SessionBuilder func(m model.Model, tools []tool.Tool, instructions string) (*session.Session, error)

// ResolvedRequest is the call-scoped execution context. It is computed
// fresh for every call.
type ResolvedRequest struct {
	Effective
	Session *session.Session
	// Ephemeral is set when Session was created for this call only.
	Ephemeral bool
}

// Resolve merges cfg and ov and selects the session: current when the
// override keeps model and tools, otherwise a new session built from the
// effective model and tools and the configured instructions.
func Resolve(cfg Config, ov Override, current *session.Session, build SessionBuilder) (ResolvedRequest, error) {
	res := ResolvedRequest{Effective: Merge(cfg, ov)}

	if Decide(ov) == ReuseSession {
		res.Session = current
		return res, nil
	}

	s, err := build(res.Model, res.Tools, cfg.Instructions)
	if err != nil {
		return ResolvedRequest{}, fmt.Errorf("engine: build ephemeral session: %w", err)
	}

	res.Session, res.Ephemeral = s, true

	return res, nil
}
