package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Every error surfaced by a
// promptline call matches exactly one of them via errors.Is.
var (
	ErrModelUnavailable      = errors.New("promptline: model unavailable")
	ErrContextEncodingFailed = errors.New("promptline: context encoding failed")
	ErrGenerationFailed      = errors.New("promptline: generation failed")
	ErrToolCallFailed        = errors.New("promptline: tool call failed")
)

// ModelUnavailableError reports that the selected model cannot serve
// requests right now. It is raised before any work starts, so no partial
// output is ever produced alongside it.
type ModelUnavailableError struct {
	Model  string
	Detail string
}

func (e *ModelUnavailableError) Error() string {
	msg := "promptline: model unavailable"
	if e.Model != "" {
		msg += fmt.Sprintf(" (%s)", e.Model)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches ErrModelUnavailable.
func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// ContextEncodingError reports that structured context could not be
// serialized into prompt text. It is always fixable by the caller.
type ContextEncodingError struct {
	Cause error
}

func (e *ContextEncodingError) Error() string {
	return fmt.Sprintf("promptline: context encoding failed: %v", e.Cause)
}

// Unwrap returns the serialization failure.
func (e *ContextEncodingError) Unwrap() error { return e.Cause }

// Is matches ErrContextEncodingFailed.
func (e *ContextEncodingError) Is(target error) bool { return target == ErrContextEncodingFailed }

// GenerationError wraps an opaque runtime failure.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("promptline: generation failed: %v", e.Cause)
}

// Unwrap returns the original runtime failure.
func (e *GenerationError) Unwrap() error { return e.Cause }

// Is matches ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

// ToolCallError reports that a specific tool invocation failed.
type ToolCallError struct {
	ToolName string
	Cause    error
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("promptline: tool %q failed: %v", e.ToolName, e.Cause)
}

// Unwrap returns the tool's failure.
func (e *ToolCallError) Unwrap() error { return e.Cause }

// Is matches ErrToolCallFailed.
func (e *ToolCallError) Is(target error) bool { return target == ErrToolCallFailed }

// ToolFailure is implemented by errors that originate from a named tool's
// invocation (see tool.ToolError).
type ToolFailure interface {
	error
	ToolName() string
}

// Compile-time checks that the taxonomy members implement error.
var (
	_ error = (*ModelUnavailableError)(nil)
	_ error = (*ContextEncodingError)(nil)
	_ error = (*GenerationError)(nil)
	_ error = (*ToolCallError)(nil)
)

// Classify maps any failure onto the taxonomy:
//
//	nil                       -> nil
//	taxonomy member           -> unchanged
//	ToolFailure (anywhere)    -> *ToolCallError{ToolName, err}
//	anything else             -> *GenerationError{err}
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if IsClassified(err) {
		return err
	}
	var tf ToolFailure
	if errors.As(err, &tf) {
		return &ToolCallError{ToolName: tf.ToolName(), Cause: err}
	}
	return &GenerationError{Cause: err}
}

// IsClassified reports whether err already is (or wraps) a taxonomy member.
func IsClassified(err error) bool {
	var (
		mu *ModelUnavailableError
		ce *ContextEncodingError
		ge *GenerationError
		te *ToolCallError
	)
	return errors.As(err, &mu) || errors.As(err, &ce) || errors.As(err, &ge) || errors.As(err, &te)
}
