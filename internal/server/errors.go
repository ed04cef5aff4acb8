package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/resume-onepage/internal/export"
	"github.com/jonathan/resume-onepage/internal/oracle"
	"github.com/jonathan/resume-onepage/internal/schemas"
	"github.com/jonathan/resume-onepage/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation  *ErrValidation
		schemaErr   *schemas.ValidationError
		rulesErr    *types.InvalidRulesError
		requestErr  *export.RequestError
		notFound    *export.NotFoundError
		timeout     *oracle.RenderTimeoutError
		unavailable *oracle.RendererUnavailableError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &schemaErr),
		errors.As(err, &rulesErr), errors.As(err, &requestErr):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &unavailable), errors.Is(err, export.ErrNoStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the machine readable error name sent next to the message.
func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusGatewayTimeout:
		return "render_timeout"
	case http.StatusServiceUnavailable:
		return "renderer_unavailable"
	default:
		return "internal_error"
	}
}
