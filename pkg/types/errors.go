package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy of error kinds the runtime recognizes
// (spec §7). It is a category, not a Go type — every error that crosses
// a component boundary is classified into one of these.
type ErrorKind string

const (
	ErrValidation          ErrorKind = "validation"
	ErrTimeout             ErrorKind = "timeout"
	ErrCancelled           ErrorKind = "cancelled"
	ErrRateLimited         ErrorKind = "rate_limited"
	ErrCircuitOpen         ErrorKind = "circuit_open"
	ErrProviderUnavailable ErrorKind = "provider_unavailable"
	ErrToolNotFound        ErrorKind = "tool_not_found"
	ErrToolExecutionFailed ErrorKind = "tool_execution_failed"
	ErrSecurityViolation   ErrorKind = "security_violation"
	ErrBudgetExceeded      ErrorKind = "budget_exceeded"
	ErrNotSupported        ErrorKind = "not_supported"
	ErrInternal            ErrorKind = "internal"
)

// Retryable reports whether the chain/executor should attempt another
// provider or tool after an error of this kind. Mirrors
// ToolErrorType.IsRetryable in the teacher's internal/agent/errors.go.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrTimeout, ErrRateLimited, ErrProviderUnavailable:
		return true
	default:
		return false
	}
}

// CoreError is the structured error every boundary operation returns
// once classified. It carries the fields spec §7 requires on any error
// that reaches the caller, and on agent.failed events.
type CoreError struct {
	Kind          ErrorKind `json:"code"`
	Message       string    `json:"message"`
	Cause         error     `json:"-"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	Status        int       `json:"status,omitempty"`
}

func (e *CoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the underlying cause.
func (e *CoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewCoreError constructs a CoreError, classifying cause via errors.As
// when cause already carries a CoreError (avoids double-wrapping).
func NewCoreError(kind ErrorKind, message string, cause error) *CoreError {
	var existing *CoreError
	if errors.As(cause, &existing) {
		return &CoreError{Kind: kind, Message: message, Cause: existing, CorrelationID: existing.CorrelationID, Provider: existing.Provider, Status: existing.Status}
	}
	return &CoreError{Kind: kind, Message: message, Cause: cause}
}

// IsKind reports whether err classifies as the given ErrorKind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// Sentinel errors for conditions components compare against directly,
// mirroring the teacher's ErrNoProvider / ErrToolNotFound style.
var (
	ErrCircuitIsOpen   = errors.New("circuit breaker is open")
	ErrNoProviders     = errors.New("no providers configured")
	ErrToolUnknown     = errors.New("tool not found")
	ErrBusy            = errors.New("runtime is at its in-flight capacity")
	ErrTaskCancelled   = errors.New("task cancelled")
	ErrStoreDestroyed  = errors.New("store has been destroyed")
)
