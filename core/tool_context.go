package core

import (
	"context"
	"errors"

	"github.com/hupe1980/promptline/logging"
)

// ToolContext is the surface handed to a tool implementation for a single
// invocation. It carries the call's context, the ids needed to correlate
// log lines with transcript entries and a scoped logger.
type ToolContext struct {
	ctx            context.Context
	sessionID      string
	functionCallID string
	toolName       string
	round          int
	logger         logging.Logger
}

// ToolContextOptions configures NewToolContext.
type ToolContextOptions struct {
	SessionID      string
	FunctionCallID string
	ToolName       string
	// Round is the 1-based tool round within the current turn.
	Round  int
	Logger logging.Logger
}

// NewToolContext binds a tool invocation to ctx.
func NewToolContext(ctx context.Context, opts ToolContextOptions) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}

	return &ToolContext{
		ctx:            ctx,
		sessionID:      opts.SessionID,
		functionCallID: opts.FunctionCallID,
		toolName:       opts.ToolName,
		round:          opts.Round,
		logger:         logging.OrNoOp(opts.Logger),
	}
}

// Context returns the context of the call that triggered the tool.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the id of the session the tool runs in.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// FunctionCallID returns the model-assigned id of the invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// ToolName returns the name of the invoked tool.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// Round returns the 1-based tool round within the current turn.
func (tc *ToolContext) Round() int { return tc.round }

// Logger returns the engine's logger, never nil.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc == nil || tc.sessionID == "" || tc.toolName == "" {
		return errors.New("invalid ToolContext")
	}

	return nil
}
