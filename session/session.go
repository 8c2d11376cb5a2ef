package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/logging"
	"github.com/hupe1980/promptline/model"
	"github.com/hupe1980/promptline/tool"
)

// DefaultMaxToolRounds caps tool-call rounds per turn when Options leaves it unset.
const DefaultMaxToolRounds = 8

// Options configure a Session.
type Options struct {
	// ID overrides the generated session identifier.
	ID           string
	Instructions string
	Tools        []tool.Tool
	Logger       logging.Logger
	// MaxToolRounds caps how many times the model may request tools within
	// one turn. Zero means DefaultMaxToolRounds.
	MaxToolRounds int
}

// Session is a conversational context bound at creation to a model, a tool
// set and instructions. It owns an append-only transcript and a busy flag.
// Turns on one session run one at a time.
type Session struct {
	id            string
	model         model.Model
	instructions  string
	tools         []tool.Tool
	registry      map[string]tool.Tool
	toolDefs      []model.ToolDefinition
	maxToolRounds int
	logger        logging.Logger

	turnMu sync.Mutex
	busy   atomic.Int32

	mu         sync.RWMutex
	transcript []core.Entry
	history    []core.Content
}

// New creates a session bound to m. It fails if the tool set contains
// duplicate or unnamed tools.
func New(m model.Model, optFns ...func(o *Options)) (*Session, error) {
	if m == nil {
		return nil, fmt.Errorf("session: model is required")
	}

	opts := Options{MaxToolRounds: DefaultMaxToolRounds}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry, err := tool.Index(opts.Tools)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	if opts.ID == "" {
		opts.ID = core.NewID()
	}

	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}

	s := &Session{
		id:            opts.ID,
		model:         m,
		instructions:  opts.Instructions,
		tools:         append([]tool.Tool(nil), opts.Tools...),
		registry:      registry,
		toolDefs:      toolDefinitions(opts.Tools),
		maxToolRounds: opts.MaxToolRounds,
		logger:        logging.OrNoOp(opts.Logger),
	}

	if strings.TrimSpace(opts.Instructions) != "" {
		s.transcript = append(s.transcript, core.NewInstructionsEntry(opts.Instructions))
	}

	return s, nil
}

func toolDefinitions(tools []tool.Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}

	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Model returns the bound model.
func (s *Session) Model() model.Model { return s.model }

// Instructions returns the instructions the session was created with.
func (s *Session) Instructions() string { return s.instructions }

// Tools returns a copy of the bound tool set.
func (s *Session) Tools() []tool.Tool { return append([]tool.Tool(nil), s.tools...) }

// IsBusy reports whether a turn is in progress.
func (s *Session) IsBusy() bool { return s.busy.Load() > 0 }

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []core.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]core.Entry(nil), s.transcript...)
}

// Prewarm forwards a latency hint to the model if it supports one.
func (s *Session) Prewarm(ctx context.Context, promptPrefix string) {
	if p, ok := s.model.(model.Prewarmer); ok {
		s.logger.Debug("session.prewarm", "session_id", s.id, "prefix_len", len(promptPrefix))
		p.Prewarm(ctx, promptPrefix)
	}
}

// Respond runs one turn and returns the model's final text.
func (s *Session) Respond(ctx context.Context, prompt string, opts model.GenerationOptions) (string, error) {
	return s.turn(ctx, prompt, opts, nil, nil)
}

// RespondSchema runs one schema-guided turn and returns the raw JSON text.
func (s *Session) RespondSchema(ctx context.Context, prompt string, schema *model.ResponseSchema, opts model.GenerationOptions) (string, error) {
	if schema == nil {
		return "", fmt.Errorf("session: response schema is required")
	}

	return s.turn(ctx, prompt, opts, schema, nil)
}

// Stream runs one turn and yields "full text so far" snapshots. The snapshot
// channel is unbuffered and both channels are closed when the turn ends.
// Cancelling ctx stops the turn; the error channel then carries ctx.Err().
//
// Snapshots restart from empty text when the model begins a new round after
// tool calls. The last snapshot always equals the returned final text.
func (s *Session) Stream(ctx context.Context, prompt string, opts model.GenerationOptions) (<-chan string, <-chan error) {
	return s.stream(ctx, prompt, opts, nil)
}

// StreamSchema is Stream for a schema-guided turn. Snapshots are the raw
// JSON text generated so far.
func (s *Session) StreamSchema(ctx context.Context, prompt string, schema *model.ResponseSchema, opts model.GenerationOptions) (<-chan string, <-chan error) {
	if schema == nil {
		out := make(chan string)
		errCh := make(chan error, 1)
		errCh <- fmt.Errorf("session: response schema is required")
		close(out)
		close(errCh)
		return out, errCh
	}

	return s.stream(ctx, prompt, opts, schema)
}

func (s *Session) stream(ctx context.Context, prompt string, opts model.GenerationOptions, schema *model.ResponseSchema) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		var (
			text string
			last string
			sent bool
		)

		emit := func(snapshot string) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- snapshot:
				last, sent = snapshot, true
				return true
			}
		}

		final, err := s.turn(ctx, prompt, opts, schema, &streamHooks{
			delta: func(d string) bool {
				text += d
				return emit(text)
			},
			round: func() { text = "" },
		})
		if err != nil {
			errCh <- err
			return
		}

		if !sent || last != final {
			if !emit(final) {
				errCh <- ctx.Err()
			}
		}
	}()

	return out, errCh
}

type streamHooks struct {
	delta func(string) bool
	round func()
}

func (s *Session) turn(
	ctx context.Context,
	prompt string,
	opts model.GenerationOptions,
	schema *model.ResponseSchema,
	hooks *streamHooks,
) (string, error) {
	s.busy.Add(1)
	defer s.busy.Add(-1)

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	start := time.Now()
	s.logger.Debug("session.turn.start", "session_id", s.id, "stream", hooks != nil, "schema", schema != nil)

	s.mu.RLock()
	contents := append([]core.Content(nil), s.history...)
	s.mu.RUnlock()

	contents = append(contents, core.NewTextContent(core.RoleUser, prompt))
	s.record(core.NewPromptEntry(prompt))

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if hooks != nil && round > 1 {
			hooks.round()
		}

		req := model.Request{
			Instructions:   s.instructions,
			Contents:       contents,
			Tools:          s.toolDefs,
			Stream:         hooks != nil,
			Options:        opts,
			ResponseSchema: schema,
		}

		callStart := time.Now()
		resp, err := s.generate(ctx, req, hooks)
		logging.LogModelCall(s.logger, s.model.Info().Name, time.Since(callStart), err)

		if err != nil {
			return "", err
		}

		contents = append(contents, resp.Content)

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			text := resp.Content.Text()
			s.record(core.NewResponseEntry(text))

			s.mu.Lock()
			s.history = contents
			s.mu.Unlock()

			s.logger.Debug("session.turn.complete", "session_id", s.id, "rounds", round, "duration", time.Since(start))

			return text, nil
		}

		if round > s.maxToolRounds {
			return "", fmt.Errorf("session: tool round limit (%d) exceeded", s.maxToolRounds)
		}

		results, err := s.executeCalls(ctx, calls, round)
		if len(results) > 0 {
			contents = append(contents, core.Content{Role: core.RoleTool, Parts: results})
		}

		if err != nil {
			return "", err
		}
	}
}

// generate runs one model request. Partial text is forwarded to hooks; the
// final response is returned.
func (s *Session) generate(ctx context.Context, req model.Request, hooks *streamHooks) (model.Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	respCh, errCh := s.model.Generate(ctx, req)

	var (
		final model.Response
		seen  bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return model.Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if !r.Partial {
				final, seen = r, true
				continue
			}

			if hooks != nil {
				if d := r.Content.Text(); d != "" && !hooks.delta(d) {
					return model.Response{}, ctx.Err()
				}
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return model.Response{}, err
			}
		}
	}

	if !seen {
		return model.Response{}, fmt.Errorf("model %s returned no final response", s.model.Info().Name)
	}

	return final, nil
}

func (s *Session) record(e core.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = append(s.transcript, e)
}
