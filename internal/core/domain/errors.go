package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedWebhook    = errors.New("webhook payload has no transaction id")
	ErrInvalidWebhookToken = errors.New("webhook token mismatch")
	ErrSinkUnavailable     = errors.New("notification sink is unavailable")
	ErrStorageUnavailable  = errors.New("database is unavailable")
)

// ValidationError is a field-level input problem. It never reaches the provider.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationErrors collects every failing field of a submission.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field failure.
func (v *ValidationErrors) Add(field, reason string) {
	*v = append(*v, &ValidationError{Field: field, Reason: reason})
}

// OrNil returns nil when nothing failed so callers can `return errs.OrNil()`.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// ProviderError is a rejection or failure reported by the payment provider.
// Retryable is true only for 5xx responses and timeouts; nothing here retries automatically.
type ProviderError struct {
	Operation       string
	HTTPStatus      int
	ProviderMessage string
	Retryable       bool
	Err             error
}

func (e *ProviderError) Error() string {
	msg := e.ProviderMessage
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.HTTPStatus == 0 {
		return fmt.Sprintf("provider %s failed: %s", e.Operation, msg)
	}
	return fmt.Sprintf("provider %s failed with status %d: %s", e.Operation, e.HTTPStatus, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// InternalError is an unexpected failure inside the orchestration logic.
// Its details are logged but never returned to the donor.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error during %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
