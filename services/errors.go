package services

import (
	"errors"
	"fmt"

	"sierra-preorder/store"
)

// ValidationError reports a bad or missing input field. Nothing was persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError is returned when a status change is not allowed from the current status.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// AuthError is a rejected login. RetryAfter is set while the caller is throttled.
type AuthError struct {
	Reason     string
	RetryAfter int
}

func (e *AuthError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s, try again in %d seconds", e.Reason, e.RetryAfter)
	}
	return e.Reason
}

// ErrNotFound is returned when a menu item, order or user does not exist.
var ErrNotFound = errors.New("not found")

// UserMessage turns any service error into the text shown to customers and managers.
// Store failures are reduced to a generic retry message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		ve *ValidationError
		te *InvalidTransitionError
		ae *AuthError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &te):
		return fmt.Sprintf("Order cannot be moved from %s to %s.", te.From, te.To)
	case errors.As(err, &ae):
		switch {
		case ae.RetryAfter > 0:
			return fmt.Sprintf("Too many attempts. Please wait %d seconds and try again.", ae.RetryAfter)
		case ae.Reason == AuthReasonSession:
			return "Your session has expired. Please log in again."
		case ae.Reason == AuthReasonDisabled:
			return "Manager login is not configured."
		default:
			return "Invalid username or password."
		}
	case errors.Is(err, ErrNotFound):
		return "Not found."
	default:
		return "Something went wrong. Please try again."
	}
}

// notFound maps the gateway's missing-record error to ErrNotFound, keeping the cause.
func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
