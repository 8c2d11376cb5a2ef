package engine

import (
	"context"
	"sync"
)

// CallbackType names a point in the call lifecycle where callbacks run.
type CallbackType string

const (
	// CallbackBeforeCall runs after the request is resolved and before the
	// session is invoked. Returning an error aborts the call.
	CallbackBeforeCall CallbackType = "before_call"

	// CallbackAfterCall runs after a call succeeded. For single-shot calls
	// Output holds the processed text; for streams the chunk count is set.
	CallbackAfterCall CallbackType = "after_call"

	// CallbackOnError runs with the classified failure of a call. Its
	// return value is ignored.
	CallbackOnError CallbackType = "on_error"
)

// Operation names the Engine method a callback fires for.
type Operation string

const (
	OpGenerate       Operation = "generate"
	OpGenerateSchema Operation = "generate_schema"
	OpStream         Operation = "stream"
	OpStreamSchema   Operation = "stream_schema"
)

// CallbackContext describes the call a callback runs for.
type CallbackContext struct {
	Operation Operation
	Model     string
	SessionID string
	Ephemeral bool
	// Prompt is the final prompt text sent to the session.
	Prompt string
	Output string
	Chunks int
	Err    error
}

// Callback hooks into the call lifecycle.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cc *CallbackContext) error
}

// FunctionCallback adapts a function to the Callback interface.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cc *CallbackContext) error
}

// NewFunctionCallback creates a callback of the given type.
func NewFunctionCallback(callbackType CallbackType, fn func(ctx context.Context, cc *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type returns the lifecycle point.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute runs the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, cc *CallbackContext) error {
	return c.fn(ctx, cc)
}

// CallbackManager keeps callbacks per type and runs them in registration
// order. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds a callback.
func (cm *CallbackManager) Register(cb Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// Execute runs all callbacks of callbackType, stopping at the first error.
func (cm *CallbackManager) Execute(ctx context.Context, callbackType CallbackType, cc *CallbackContext) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb.Execute(ctx, cc); err != nil {
			return err
		}
	}

	return nil
}
