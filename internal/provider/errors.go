package provider

import (
	"errors"
	"net/http"

	"github.com/agentmesh/core/pkg/types"
)

// classifyStatus maps an HTTP status code into the shared ErrorKind
// taxonomy, mirroring the teacher's providers.classifyStatusCode but
// collapsed onto pkg/types.ErrorKind instead of a provider-local
// FailoverReason.
func classifyStatus(status int) types.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return types.ErrRateLimited
	case status == http.StatusRequestTimeout:
		return types.ErrTimeout
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return types.ErrSecurityViolation
	case status == http.StatusBadRequest:
		return types.ErrValidation
	case status >= 500:
		return types.ErrProviderUnavailable
	default:
		return types.ErrProviderUnavailable
	}
}

// asAPIError is a thin errors.As wrapper so each adapter file doesn't
// need to repeat the generic-pointer dance inline.
func asAPIError(err error, target any) bool {
	return errors.As(err, target)
}
