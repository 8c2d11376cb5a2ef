// Package promptline shapes requests to a text-generation runtime and
// transforms what comes back.
//
// A Promptline merges its stored configuration with per-call overrides,
// runs the call on a long-lived session (or on an ephemeral one when the
// call swaps the model or the tools), normalizes the output with a
// post-processing pipeline and reports failures through a small error
// taxonomy (see package core). Most applications:
//  1. Create a Promptline via New (or NewFromConfigFile) with a model adapter
//  2. Generate text, typed objects (GenerateObject) or streams (Stream)
//  3. Inspect or reset the session with Transcript, IsBusy and Reset
//
// The facade delegates resolution and streaming to engine.Engine.
package promptline

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"strings"
	"unicode"

	"github.com/hupe1980/promptline/config"
	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/engine"
	"github.com/hupe1980/promptline/internal/util"
	"github.com/hupe1980/promptline/logging"
	"github.com/hupe1980/promptline/model"
	"github.com/hupe1980/promptline/postprocess"
	"github.com/hupe1980/promptline/prompt"
	"github.com/hupe1980/promptline/tool"
)

// CallOption overrides one configuration field for a single call.
type CallOption = engine.CallOption

// StreamMode selects whether streams yield snapshots or deltas.
type StreamMode = engine.StreamMode

const (
	// Snapshots yields the full processed text on every update.
	Snapshots = engine.Snapshots
	// Deltas yields only newly generated text.
	Deltas = engine.Deltas
)

// Per-call overrides. WithModel and WithTools run the call on an ephemeral
// session; the others reuse the persistent one.
var (
	WithModel          = engine.WithModel
	WithTools          = engine.WithTools
	WithTemperature    = engine.WithTemperature
	WithMaxTokens      = engine.WithMaxTokens
	WithSampling       = engine.WithSampling
	WithContextOptions = engine.WithContextOptions
	WithPostProcessing = engine.WithPostProcessing
	WithSchemaInPrompt = engine.WithSchemaInPrompt
)

// Options configures a Promptline instance.
type Options struct {
	// Instructions seed the persistent session and every ephemeral one.
	Instructions   string
	Tools          []tool.Tool
	Temperature    *float64
	MaxTokens      *int
	Sampling       model.Sampling
	Context        prompt.ContextOptions
	PostProcessing postprocess.Spec
	// MaxToolRounds caps tool-call rounds per turn (0 = session default).
	MaxToolRounds int

	Callbacks []engine.Callback

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Promptline is the high-level facade over the engine.
type Promptline struct {
	engine *engine.Engine
}

// New creates a Promptline bound to m. It fails if the configuration is
// invalid (see engine.Config.Validate).
func New(m model.Model, optFns ...func(o *Options)) (*Promptline, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := engine.Config{
		Instructions:   opts.Instructions,
		Model:          m,
		Tools:          opts.Tools,
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		Sampling:       opts.Sampling,
		Context:        opts.Context,
		PostProcessing: opts.PostProcessing,
		MaxToolRounds:  opts.MaxToolRounds,
	}

	e, err := engine.New(cfg, func(o *engine.Options) {
		o.Logger = opts.Logger
		o.Callbacks = opts.Callbacks
	})
	if err != nil {
		return nil, err
	}

	return &Promptline{engine: e}, nil
}

// NewFromConfigFile creates a Promptline from a YAML file (see package
// config). When m is nil the model is built from the file's model section.
// The file's logging section provides the logger unless optFns set one.
func NewFromConfigFile(path string, m model.Model, optFns ...func(o *Options)) (*Promptline, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if m == nil {
		if m, err = f.BuildModel(); err != nil {
			return nil, err
		}
	}

	cfg := f.EngineConfig(m)

	return New(m, append([]func(o *Options){func(o *Options) {
		o.Instructions = cfg.Instructions
		o.Temperature = cfg.Temperature
		o.MaxTokens = cfg.MaxTokens
		o.Sampling = cfg.Sampling
		o.Context = cfg.Context
		o.PostProcessing = cfg.PostProcessing
		o.MaxToolRounds = cfg.MaxToolRounds
		o.Logger = f.NewLogger(nil)
	}}, optFns...)...)
}

// Engine returns the underlying engine.
func (p *Promptline) Engine() *engine.Engine { return p.engine }

// Generate sends prompt and returns the post-processed response.
func (p *Promptline) Generate(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	return p.engine.Generate(ctx, engine.Text(prompt), opts...)
}

// GenerateSpec renders spec and generates a response for it.
func (p *Promptline) GenerateSpec(ctx context.Context, spec prompt.Spec, opts ...CallOption) (string, error) {
	return p.engine.Generate(ctx, engine.Text(prompt.Render(spec)), opts...)
}

// GenerateWithContext embeds data as a JSON context block below prompt.
// Data that cannot be encoded fails with *core.ContextEncodingError.
func (p *Promptline) GenerateWithContext(ctx context.Context, prompt string, data any, opts ...CallOption) (string, error) {
	return p.engine.Generate(ctx, engine.TextWithData(prompt, data), opts...)
}

// GenerateSpecWithContext renders spec and embeds data below it.
func (p *Promptline) GenerateSpecWithContext(ctx context.Context, spec prompt.Spec, data any, opts ...CallOption) (string, error) {
	return p.engine.Generate(ctx, engine.TextWithData(prompt.Render(spec), data), opts...)
}

// GenerateObject runs a schema-guided call whose schema is derived from T
// (a struct type) and decodes the response into a T. A response that does
// not decode fails with *core.GenerationError.
//
// Example:
//
//	type Verdict struct {
//	    Winner string  `json:"winner" enum:"white,black,draw"`
//	    Rating float64 `json:"rating" description:"Performance rating"`
//	}
//	v, err := promptline.GenerateObject[Verdict](ctx, p, "Who won?")
func GenerateObject[T any](ctx context.Context, p *Promptline, prompt string, opts ...CallOption) (T, error) {
	return generateObject[T](ctx, p, engine.Text(prompt), opts)
}

// GenerateObjectWithContext is GenerateObject with embedded context data.
func GenerateObjectWithContext[T any](ctx context.Context, p *Promptline, prompt string, data any, opts ...CallOption) (T, error) {
	return generateObject[T](ctx, p, engine.TextWithData(prompt, data), opts)
}

func generateObject[T any](ctx context.Context, p *Promptline, in engine.Input, opts []CallOption) (T, error) {
	var out T

	schema, err := schemaOf[T]()
	if err != nil {
		return out, core.Classify(err)
	}

	text, err := p.engine.GenerateSchema(ctx, in, schema, opts...)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, &core.GenerationError{Cause: fmt.Errorf("decode %s response: %w", schema.Name, err)}
	}

	return out, nil
}

func schemaOf[T any]() (*model.ResponseSchema, error) {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema-guided generation needs a struct type, got %s", t)
	}

	return &model.ResponseSchema{
		Name:   schemaName(t),
		Schema: util.CreateSchema(reflect.New(t).Interface()),
	}, nil
}

// schemaName converts a Go type name to snake_case ("PlayerRating" -> "player_rating").
func schemaName(t reflect.Type) string {
	name := t.Name()
	if name == "" {
		return "response"
	}

	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}

	return b.String()
}

// StreamObject streams a schema-guided response whose schema is derived
// from T. Chunks are the raw JSON text, never post-processed; the final
// snapshot (or the concatenated deltas) decodes into T.
func StreamObject[T any](ctx context.Context, p *Promptline, prompt string, mode StreamMode, opts ...CallOption) iter.Seq2[string, error] {
	return streamObject[T](ctx, p, engine.Text(prompt), mode, opts)
}

// StreamObjectWithContext is StreamObject with embedded context data.
func StreamObjectWithContext[T any](ctx context.Context, p *Promptline, prompt string, data any, mode StreamMode, opts ...CallOption) iter.Seq2[string, error] {
	return streamObject[T](ctx, p, engine.TextWithData(prompt, data), mode, opts)
}

func streamObject[T any](ctx context.Context, p *Promptline, in engine.Input, mode StreamMode, opts []CallOption) iter.Seq2[string, error] {
	schema, err := schemaOf[T]()
	if err != nil {
		return func(yield func(string, error) bool) {
			yield("", core.Classify(err))
		}
	}

	return p.engine.StreamSchema(ctx, in, schema, mode, opts...)
}

// Stream sends prompt and yields processed snapshots or deltas. Breaking
// out of the loop or cancelling ctx ends the sequence without an error.
//
// The stream holds the persistent session until it ends, so the loop body
// must not start another call on it; calls with WithModel or WithTools run
// on their own session and are fine.
func (p *Promptline) Stream(ctx context.Context, prompt string, mode StreamMode, opts ...CallOption) iter.Seq2[string, error] {
	return p.engine.Stream(ctx, engine.Text(prompt), mode, opts...)
}

// StreamSpec renders spec and streams the response.
func (p *Promptline) StreamSpec(ctx context.Context, spec prompt.Spec, mode StreamMode, opts ...CallOption) iter.Seq2[string, error] {
	return p.engine.Stream(ctx, engine.Text(prompt.Render(spec)), mode, opts...)
}

// StreamWithContext embeds data below prompt and streams the response.
func (p *Promptline) StreamWithContext(ctx context.Context, prompt string, data any, mode StreamMode, opts ...CallOption) iter.Seq2[string, error] {
	return p.engine.Stream(ctx, engine.TextWithData(prompt, data), mode, opts...)
}

// StreamSpecWithContext renders spec, embeds data and streams the response.
func (p *Promptline) StreamSpecWithContext(ctx context.Context, spec prompt.Spec, data any, mode StreamMode, opts ...CallOption) iter.Seq2[string, error] {
	return p.engine.Stream(ctx, engine.TextWithData(prompt.Render(spec), data), mode, opts...)
}

// IsAvailable reports whether the configured model can serve requests.
func (p *Promptline) IsAvailable(ctx context.Context) bool { return p.engine.Availability(ctx).Available }

// Availability reports the configured model's availability with a reason.
func (p *Promptline) Availability(ctx context.Context) model.Availability {
	return p.engine.Availability(ctx)
}

// ModelAvailability reports the availability of any model.
func (p *Promptline) ModelAvailability(ctx context.Context, m model.Model) model.Availability {
	return p.engine.ModelAvailability(ctx, m)
}

// Prewarm hints the model to prepare for a prompt starting with promptPrefix.
func (p *Promptline) Prewarm(ctx context.Context, promptPrefix string) {
	p.engine.Prewarm(ctx, promptPrefix)
}

// Reset discards the persistent session and starts a fresh one.
func (p *Promptline) Reset() error { return p.engine.Reset() }

// Transcript returns the persistent session's transcript.
func (p *Promptline) Transcript() []core.Entry { return p.engine.Transcript() }

// IsBusy reports whether the persistent session is responding.
func (p *Promptline) IsBusy() bool { return p.engine.IsBusy() }
