package export

import (
	"errors"
	"fmt"
)

// NotFoundError reports a loadout id or slug with no stored loadout.
type NotFoundError struct {
	LoadoutID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("loadout not found: %s", e.LoadoutID)
}

// RequestError reports an export request that cannot be resolved to a document.
type RequestError struct {
	Message string
	Cause   error
}

func (e *RequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid export request: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid export request: %s", e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// ErrNoStore is returned when a loadout id is given but no content store is configured.
var ErrNoStore = errors.New("no content store configured")
