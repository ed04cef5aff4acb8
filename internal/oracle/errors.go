package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/resume-onepage/internal/browser"
	"github.com/jonathan/resume-onepage/internal/latex"
)

// RendererUnavailableError reports that the rendering backend could not be
// started or failed mid-session. It aborts the export.
type RendererUnavailableError struct {
	Renderer string
	Message  string
	Cause    error
}

func (e *RendererUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("renderer %s unavailable: %s: %v", e.Renderer, e.Message, e.Cause)
	}
	return fmt.Sprintf("renderer %s unavailable: %s", e.Renderer, e.Message)
}

func (e *RendererUnavailableError) Unwrap() error {
	return e.Cause
}

// RenderTimeoutError reports that a probe exceeded its time budget. It aborts
// the export and never stands in for a fit or overflow result.
type RenderTimeoutError struct {
	Operation string
	Timeout   time.Duration
	Cause     error
}

func (e *RenderTimeoutError) Error() string {
	msg := fmt.Sprintf("render timeout during %s", e.Operation)
	if e.Timeout > 0 {
		msg = fmt.Sprintf("%s (budget %s)", msg, e.Timeout)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *RenderTimeoutError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err belongs to a category that aborts the export
// outright: an unavailable renderer or a timed out probe.
func IsFatal(err error) bool {
	var unavailable *RendererUnavailableError
	var timeout *RenderTimeoutError
	return errors.As(err, &unavailable) || errors.As(err, &timeout)
}

// classify maps backend errors onto the oracle taxonomy. Errors that are
// already classified pass through unchanged.
func classify(ctx context.Context, renderer, op string, err error) error {
	if err == nil || IsFatal(err) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &RenderTimeoutError{Operation: op, Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var toolErr *latex.ToolNotFoundError
	if errors.As(err, &toolErr) {
		return &RendererUnavailableError{Renderer: renderer, Message: "executable not found", Cause: err}
	}
	var browserErr *browser.UnavailableError
	if errors.As(err, &browserErr) || errors.Is(err, browser.ErrPoolClosed) {
		return &RendererUnavailableError{Renderer: renderer, Message: "browser could not be reached", Cause: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}
