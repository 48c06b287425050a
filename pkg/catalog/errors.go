package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse marks a response missing a field the caller relies on.
var ErrMalformedResponse = errors.New("malformed response")

// TransportError is a failed or malformed page fetch. The catalog view is
// not trustworthy after one, so callers stop the run.
type TransportError struct {
	Op     string
	Cursor string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	cursor := e.Cursor
	if cursor == "" {
		cursor = "start"
	}
	return fmt.Sprintf("catalog %s at cursor %s: %v", e.Op, cursor, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserError is a validation error reported by the price mutation.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UpdateError is a failed price write for a single item.
type UpdateError struct {
	ItemID     string
	VariantID  string
	UserErrors []UserError
	Err        error
}

// Error implements the error interface.
func (e *UpdateError) Error() string {
	return fmt.Sprintf("update variant %s of %s: %s", e.VariantID, e.ItemID, e.Reason())
}

// Reason returns the failure without the item identifiers.
func (e *UpdateError) Reason() string {
	if len(e.UserErrors) > 0 {
		messages := make([]string, 0, len(e.UserErrors))
		for _, ue := range e.UserErrors {
			msg := ue.Message
			if len(ue.Field) > 0 {
				msg = strings.Join(ue.Field, ".") + ": " + msg
			}
			messages = append(messages, msg)
		}
		return strings.Join(messages, "; ")
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpdateError) Unwrap() error {
	return e.Err
}
