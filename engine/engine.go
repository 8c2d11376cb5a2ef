package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/logging"
	"github.com/hupe1980/promptline/model"
	"github.com/hupe1980/promptline/postprocess"
	"github.com/hupe1980/promptline/prompt"
	"github.com/hupe1980/promptline/session"
	"github.com/hupe1980/promptline/tool"
	"golang.org/x/sync/singleflight"
)

var errNilSchema = errors.New("engine: response schema is required")

func errInvalidMode(m StreamMode) error {
	return fmt.Errorf("engine: unknown stream mode %q", m)
}

// Options configure an Engine beyond its Config.
type Options struct {
	// Logger receives engine, session and tool events. Defaults to NoOp.
	Logger logging.Logger

	// Callbacks are registered on the engine's CallbackManager.
	Callbacks []Callback
}

// Input is the prompt of one call, optionally with structured context to
// embed as a JSON block.
type Input struct {
	Text string
	// Data is embedded when HasData is set; nil data then renders as null.
	Data    any
	HasData bool
}

// Text returns an Input without context data.
func Text(s string) Input { return Input{Text: s} }

// TextWithData returns an Input that embeds data.
func TextWithData(s string, data any) Input { return Input{Text: s, Data: data, HasData: true} }

// Engine runs calls against a persistent session and ephemeral per-call
// sessions.
//
// Calls on the persistent session are serialized: each holds the call lock
// for all of its session work, streams from the first iteration until the
// sequence ends. Ephemeral calls never take the lock. Reset swaps the
// persistent session without waiting for in-flight calls, which finish on
// the session they started with.
type Engine struct {
	cfg       Config
	logger    logging.Logger
	callbacks *CallbackManager

	callMu sync.Mutex

	mu      sync.RWMutex
	current *session.Session

	availability singleflight.Group
}

// New validates cfg and creates an Engine with a fresh persistent session.
func New(cfg Config, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Tools = append([]tool.Tool(nil), cfg.Tools...)

	e := &Engine{
		cfg:       cfg,
		logger:    logging.OrNoOp(opts.Logger),
		callbacks: NewCallbackManager(),
	}

	for _, cb := range opts.Callbacks {
		e.callbacks.Register(cb)
	}

	s, err := e.newSession(cfg.Model, cfg.Tools, cfg.Instructions)
	if err != nil {
		return nil, err
	}

	e.current = s

	return e, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.Tools = append([]tool.Tool(nil), e.cfg.Tools...)
	return cfg
}

// Callbacks returns the callback manager.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

func (e *Engine) newSession(m model.Model, tools []tool.Tool, instructions string) (*session.Session, error) {
	return session.New(m, func(o *session.Options) {
		o.Instructions = instructions
		o.Tools = tools
		o.Logger = e.logger
		o.MaxToolRounds = e.cfg.MaxToolRounds
	})
}

// Session returns the current persistent session.
func (e *Engine) Session() *session.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.current
}

// Reset replaces the persistent session with a fresh one.
func (e *Engine) Reset() error {
	s, err := e.newSession(e.cfg.Model, e.cfg.Tools, e.cfg.Instructions)
	if err != nil {
		return core.Classify(err)
	}

	e.mu.Lock()
	old := e.current
	e.current = s
	e.mu.Unlock()

	e.logger.Info("engine.session.reset", "old_session_id", old.ID(), "session_id", s.ID())

	return nil
}

// Transcript returns the persistent session's transcript.
func (e *Engine) Transcript() []core.Entry { return e.Session().Transcript() }

// IsBusy reports whether the persistent session is running a turn.
func (e *Engine) IsBusy() bool { return e.Session().IsBusy() }

// Prewarm forwards a latency hint to the persistent session's model.
func (e *Engine) Prewarm(ctx context.Context, promptPrefix string) {
	e.Session().Prewarm(ctx, promptPrefix)
}

// Availability reports whether the configured model can serve requests.
func (e *Engine) Availability(ctx context.Context) model.Availability {
	return e.ModelAvailability(ctx, e.cfg.Model)
}

// ModelAvailability reports whether m can serve requests. Concurrent checks
// of the same model instance share one query.
func (e *Engine) ModelAvailability(ctx context.Context, m model.Model) model.Availability {
	if m == nil {
		return model.CheckAvailability(ctx, nil)
	}

	info := m.Info()
	key := fmt.Sprintf("%s/%s/%p", info.Provider, info.Name, m)

	ch := e.availability.DoChan(key, func() (any, error) {
		return model.CheckAvailability(context.WithoutCancel(ctx), m), nil
	})

	select {
	case <-ctx.Done():
		return model.Unavailable(ctx.Err().Error())
	case r := <-ch:
		return r.Val.(model.Availability)
	}
}

// ensureAvailable fails with *core.ModelUnavailableError when m cannot
// serve requests. A done ctx is reported as ctx.Err() instead.
func (e *Engine) ensureAvailable(ctx context.Context, m model.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a := e.ModelAvailability(ctx, m)
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Available {
		return nil
	}

	name := ""
	if m != nil {
		name = m.Info().Name
	}

	return &core.ModelUnavailableError{Model: name, Detail: a.Reason}
}

// acquire resolves the call's session. For the persistent session the
// call lock is held until release is called.
func (e *Engine) acquire(ov Override) (res ResolvedRequest, release func(), err error) {
	if Decide(ov) == NewSession {
		res, err = Resolve(e.cfg, ov, nil, e.newSession)
		return res, func() {}, err
	}

	e.callMu.Lock()

	res, err = Resolve(e.cfg, ov, e.Session(), e.newSession)
	if err != nil {
		e.callMu.Unlock()
		return res, func() {}, err
	}

	return res, e.callMu.Unlock, nil
}

func buildPrompt(in Input, eff Effective, schema *model.ResponseSchema) (string, error) {
	text := in.Text

	if in.HasData {
		var err error
		if text, err = prompt.Embed(text, in.Data, eff.Context); err != nil {
			return "", err
		}
	}

	if schema != nil && eff.IncludeSchema {
		return prompt.WithSchema(text, schema.Schema)
	}

	return text, nil
}

// Generate runs one turn and returns the post-processed text.
func (e *Engine) Generate(ctx context.Context, in Input, opts ...CallOption) (string, error) {
	return e.call(ctx, OpGenerate, in, nil, opts)
}

// GenerateSchema runs one schema-guided turn and returns the raw JSON text.
// Post-processing is not applied to schema-guided output.
func (e *Engine) GenerateSchema(ctx context.Context, in Input, schema *model.ResponseSchema, opts ...CallOption) (string, error) {
	if schema == nil {
		return "", core.Classify(errNilSchema)
	}

	return e.call(ctx, OpGenerateSchema, in, schema, opts)
}

func (e *Engine) call(ctx context.Context, op Operation, in Input, schema *model.ResponseSchema, opts []CallOption) (out string, err error) {
	start := time.Now()
	ov := NewOverride(opts...)
	eff := Merge(e.cfg, ov)
	cc := &CallbackContext{Operation: op, Model: modelName(eff.Model)}

	defer func() {
		if err != nil {
			err = core.Classify(err)
			cc.Err = err
			_ = e.callbacks.Execute(ctx, CallbackOnError, cc)
		}

		e.logCall(op, cc, time.Since(start), err)
	}()

	if err := e.ensureAvailable(ctx, eff.Model); err != nil {
		return "", err
	}

	text, err := buildPrompt(in, eff, schema)
	if err != nil {
		return "", err
	}

	res, release, err := e.acquire(ov)
	if err != nil {
		return "", err
	}
	defer release()

	cc.SessionID, cc.Ephemeral, cc.Prompt = res.Session.ID(), res.Ephemeral, text

	e.logger.Debug("engine."+string(op)+".start",
		"session_id", cc.SessionID,
		"ephemeral", res.Ephemeral,
		"model", cc.Model,
	)

	if err := e.callbacks.Execute(ctx, CallbackBeforeCall, cc); err != nil {
		return "", err
	}

	if schema != nil {
		out, err = res.Session.RespondSchema(ctx, text, schema, res.Options)
	} else {
		out, err = res.Session.Respond(ctx, text, res.Options)
		out = postprocess.Apply(out, res.PostProcessing)
	}

	if err != nil {
		return "", err
	}

	cc.Output = out
	_ = e.callbacks.Execute(ctx, CallbackAfterCall, cc)

	return out, nil
}

// Stream runs one turn and yields processed snapshots or deltas. Nothing
// happens until the sequence is iterated. Stopping iteration or cancelling
// ctx ends the sequence without an error; any other failure is classified
// and yielded as the last element.
//
// A stream on the persistent session holds the call lock while the
// consumer's loop body runs. Calling Generate or Stream on the persistent
// session from inside that loop blocks forever; use an ephemeral call
// (WithModel or WithTools) there instead.
func (e *Engine) Stream(ctx context.Context, in Input, mode StreamMode, opts ...CallOption) iter.Seq2[string, error] {
	return e.stream(ctx, OpStream, in, nil, mode, opts)
}

// StreamSchema runs one schema-guided turn and yields the raw JSON text as
// snapshots or deltas. Post-processing is not applied. Locking and
// cancellation behave as in Stream.
func (e *Engine) StreamSchema(ctx context.Context, in Input, schema *model.ResponseSchema, mode StreamMode, opts ...CallOption) iter.Seq2[string, error] {
	return e.stream(ctx, OpStreamSchema, in, schema, mode, opts)
}

func (e *Engine) stream(ctx context.Context, op Operation, in Input, schema *model.ResponseSchema, mode StreamMode, opts []CallOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var (
			start   = time.Now()
			ov      = NewOverride(opts...)
			eff     = Merge(e.cfg, ov)
			cc      = &CallbackContext{Operation: op, Model: modelName(eff.Model)}
			stopped bool
			failure error
		)

		defer func() {
			logging.LogStream(e.logger, cc.Model, string(mode), cc.Chunks, stopped, time.Since(start), failure)
		}()

		fail := func(err error) {
			failure = core.Classify(err)
			cc.Err = failure
			_ = e.callbacks.Execute(ctx, CallbackOnError, cc)
			yield("", failure)
		}

		if !mode.Valid() {
			fail(errInvalidMode(mode))
			return
		}

		if op == OpStreamSchema && schema == nil {
			fail(errNilSchema)
			return
		}

		if err := e.ensureAvailable(ctx, eff.Model); err != nil {
			if ctx.Err() != nil {
				stopped = true
				return
			}
			fail(err)
			return
		}

		text, err := buildPrompt(in, eff, schema)
		if err != nil {
			fail(err)
			return
		}

		res, release, err := e.acquire(ov)
		if err != nil {
			fail(err)
			return
		}
		defer release()

		cc.SessionID, cc.Ephemeral, cc.Prompt = res.Session.ID(), res.Ephemeral, text

		e.logger.Debug("engine."+string(op)+".start",
			"session_id", cc.SessionID,
			"ephemeral", res.Ephemeral,
			"model", cc.Model,
			"mode", string(mode),
		)

		if err := e.callbacks.Execute(ctx, CallbackBeforeCall, cc); err != nil {
			fail(err)
			return
		}

		feed := func(ctx context.Context) (<-chan string, <-chan error) {
			if schema != nil {
				return res.Session.StreamSchema(ctx, text, schema, res.Options)
			}
			return res.Session.Stream(ctx, text, res.Options)
		}

		spec := res.PostProcessing
		if schema != nil {
			spec = postprocess.Spec{}
		}

		for chunk, err := range Transform(ctx, feed, spec, mode) {
			if err != nil {
				fail(err)
				return
			}

			cc.Chunks++
			cc.Output = chunk

			if !yield(chunk, nil) {
				stopped = true
				return
			}
		}

		if ctx.Err() != nil {
			stopped = true
			return
		}

		_ = e.callbacks.Execute(ctx, CallbackAfterCall, cc)
	}
}

func (e *Engine) logCall(op Operation, cc *CallbackContext, dur time.Duration, err error) {
	args := []any{
		"operation", string(op),
		"model", cc.Model,
		"session_id", cc.SessionID,
		"ephemeral", cc.Ephemeral,
		"duration", dur,
	}

	if err != nil {
		e.logger.Error("engine."+string(op)+".failed", append(args, "error", err.Error())...)
		return
	}

	e.logger.Info("engine."+string(op)+".completed", append(args, "output_len", len(cc.Output))...)
}

func modelName(m model.Model) string {
	if m == nil {
		return ""
	}
	return m.Info().Name
}
