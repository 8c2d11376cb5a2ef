package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/model"
)

// ErrScriptExhausted is returned when a ScriptedModel receives more requests than scripted turns.
var ErrScriptExhausted = errors.New("testutil: scripted model has no turns left")

// ScriptedModel replays scripted turns, one per Generate call, and records
// every request. It implements model.AvailabilityChecker and
// model.Prewarmer. It is safe for concurrent use.
type ScriptedModel struct {
	name string

	mu           sync.Mutex
	turns        []Turn
	requests     []model.Request
	availability model.Availability
	availCalls   int
	availGate    chan struct{}
	prewarms     []string
}

// NewScriptedModel creates an available model that answers with turns in order.
func NewScriptedModel(name string, turns ...Turn) *ScriptedModel {
	return &ScriptedModel{name: name, turns: turns, availability: model.Available}
}

// Push appends more turns.
func (m *ScriptedModel) Push(turns ...Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
}

// SetAvailability changes what Availability reports.
func (m *ScriptedModel) SetAvailability(a model.Availability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availability = a
}

// GateAvailability makes Availability block until the returned function is called.
func (m *ScriptedModel) GateAvailability() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gate := make(chan struct{})
	m.availGate = gate

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Availability implements model.AvailabilityChecker.
func (m *ScriptedModel) Availability(ctx context.Context) model.Availability {
	m.mu.Lock()
	m.availCalls++
	gate := m.availGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.Unavailable(ctx.Err().Error())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availability
}

// AvailabilityCalls returns how many times Availability ran.
func (m *ScriptedModel) AvailabilityCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availCalls
}

// Prewarm implements model.Prewarmer.
func (m *ScriptedModel) Prewarm(_ context.Context, prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prewarms = append(m.prewarms, prefix)
}

// Prewarms returns recorded prewarm prefixes.
func (m *ScriptedModel) Prewarms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prewarms...)
}

// Requests returns the recorded requests.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "scripted", SupportsTools: true}
}

// Generate implements model.Model. Deltas are only emitted for streaming requests.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		turn Turn
		ok   bool
	)
	if len(m.turns) > 0 {
		turn, m.turns, ok = m.turns[0], m.turns[1:], true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if !ok {
			errCh <- ErrScriptExhausted
			return
		}

		send := func(r model.Response) bool {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			case respCh <- r:
				return true
			}
		}

		for i, d := range turn.deltas {
			if turn.err != nil && turn.errAfter == i {
				errCh <- turn.err
				return
			}

			if req.Stream && !send(model.Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, d)}) {
				return
			}
		}

		if turn.err != nil {
			errCh <- turn.err
			return
		}

		if turn.block {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}

		send(turn.final())
	}()

	return respCh, errCh
}

// Feed returns a snapshot feed that yields snapshots in order and then
// reports err (nil for normal exhaustion). The producer stops early when ctx
// is cancelled.
func Feed(ctx context.Context, err error, snapshots ...string) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		for _, s := range snapshots {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- s:
			}
		}

		if err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// Collect drains a snapshot feed into a slice and returns its terminal error.
func Collect(snapshots <-chan string, errCh <-chan error) ([]string, error) {
	var got []string
	for s := range snapshots {
		got = append(got, s)
	}

	if err, ok := <-errCh; ok && err != nil {
		return got, err
	}

	return got, nil
}

// String renders the scripted model for test failure messages.
func (m *ScriptedModel) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("ScriptedModel(%s, %d turns left, %d requests)", m.name, len(m.turns), len(m.requests))
}

var (
	_ model.Model               = (*ScriptedModel)(nil)
	_ model.AvailabilityChecker = (*ScriptedModel)(nil)
	_ model.Prewarmer           = (*ScriptedModel)(nil)
)
