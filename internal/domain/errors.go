package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfiguration signals a missing credential or setting. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient signals a rate-limited call that may succeed later.
	ErrTransient = errors.New("rate limited")
	// ErrFormat signals a collaborator response that could not be parsed.
	ErrFormat = errors.New("malformed response")
	// ErrProviderError signals a non-retryable upstream failure.
	ErrProviderError = errors.New("provider error")
	// ErrInvalidArgument signals a caller-supplied value outside its contract.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound signals a missing session or record.
	ErrNotFound = errors.New("not found")
	// ErrStorageDisabled signals an operation that needs persistence while none is configured.
	ErrStorageDisabled = errors.New("storage not configured")
	// ErrQuotaExceeded signals that the daily expansion token budget is spent.
	ErrQuotaExceeded = errors.New("expansion token budget exceeded")
)

// APIError describes a failed HTTP exchange with an external provider.
// It unwraps to ErrTransient for 429/503 and to ErrProviderError otherwise.
type APIError struct {
	Service    string
	StatusCode int
	Detail     string
	Hint       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s error (%d): %s", e.Service, e.StatusCode, statusExplanation(e.StatusCode))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap maps the status onto the error taxonomy.
func (e *APIError) Unwrap() error {
	if e.RateLimited() {
		return ErrTransient
	}
	return ErrProviderError
}

// HTTPStatus exposes the response status for retry classification.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// RateLimited reports whether the status is a rate-limit signal.
func (e *APIError) RateLimited() bool {
	return IsRateLimitStatus(e.StatusCode)
}

// IsRateLimitStatus reports whether an HTTP status means "slow down and retry".
func IsRateLimitStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func statusExplanation(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "invalid API key"
	case http.StatusForbidden:
		return "access denied"
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "service temporarily unavailable"
	case http.StatusInternalServerError:
		return "server error"
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusNotFound:
		return "not found"
	case http.StatusPaymentRequired:
		return "payment required"
	default:
		return "request failed"
	}
}
