package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/promptline/core"
)

// MockModel is a lightweight in-memory Model useful for tests and examples.
// It answers with canned completions keyed by the latest user prompt and
// implements AvailabilityChecker and Prewarmer. It is safe for concurrent use.
type MockModel struct {
	info Info

	mu           sync.Mutex
	responses    map[string]string
	availability Availability
	prewarms     []string
	requests     []Request
	err          error
}

// NewMockModel constructs an available MockModel with tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses:    make(map[string]string),
		availability: Available,
	}
}

// AddResponse registers a canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetAvailability changes what Availability reports.
func (m *MockModel) SetAvailability(a Availability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availability = a
}

// FailWith makes every subsequent Generate call fail with err (nil resets).
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Availability implements AvailabilityChecker.
func (m *MockModel) Availability(context.Context) Availability {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availability
}

// Prewarm implements Prewarmer by recording the prefix.
func (m *MockModel) Prewarm(_ context.Context, prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prewarms = append(m.prewarms, prefix)
}

// Prewarms returns the prefixes passed to Prewarm so far.
func (m *MockModel) Prewarms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prewarms...)
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model; streaming requests emit one partial response per
// rune followed by the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	failure := m.err
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if failure != nil {
			errCh <- failure
			return
		}

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		inputText := req.Contents[len(req.Contents)-1].Text()

		m.mu.Lock()
		full, ok := m.responses[inputText]
		m.mu.Unlock()

		if !ok {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.NewTextContent(core.RoleAssistant, string(r)),
				}:
				}
			}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Content:      core.NewTextContent(core.RoleAssistant, full),
			FinishReason: "stop",
		}:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

var (
	_ Model               = (*MockModel)(nil)
	_ AvailabilityChecker = (*MockModel)(nil)
	_ Prewarmer           = (*MockModel)(nil)
)
