// Package httperr turns failed provider responses into domain.APIError values.
package httperr

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

const (
	maxBodyBytes = 4 << 10
	maxDetailLen  = 200
)

// FromResponse reads (a bounded prefix of) the body and builds an APIError.
// The caller still owns resp.Body.
func FromResponse(service string, resp *http.Response) *domain.APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	return New(service, resp.StatusCode, body)
}

// New builds an APIError from a status and raw body.
func New(service string, status int, body []byte) *domain.APIError {
	return &domain.APIError{
		Service:    service,
		StatusCode: status,
		Detail:     ExtractMessage(body),
		Hint:       Hint(service, status),
	}
}

// ExtractMessage pulls a message out of common JSON error shapes:
// {"error":{"message":...}}, {"message":...}, {"error":...} and {"detail":...}.
func ExtractMessage(body []byte) string {
	var parsed map[string]json.RawMessage
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil {
		return ""
	}

	if raw, ok := parsed["error"]; ok {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
			return truncate(nested.Message)
		}
	}
	for _, field := range []string{"message", "error", "detail"} {
		var s string
		if raw, ok := parsed[field]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return truncate(s)
		}
	}
	return ""
}

// Hint suggests what the user can do about a failed status.
func Hint(service string, status int) string {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Sprintf("set a valid %s API key", strings.ToLower(service))
	case http.StatusForbidden:
		return "your API key may lack permissions or be revoked; check your API dashboard"
	case http.StatusTooManyRequests:
		return "too many requests; wait a moment and try again"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Sprintf("%s is experiencing issues; try again in a few minutes", service)
	case http.StatusInternalServerError:
		return fmt.Sprintf("%s encountered an internal error", service)
	case http.StatusBadRequest:
		return "the search query may contain invalid characters"
	case http.StatusNotFound:
		return "the API endpoint may have changed"
	case http.StatusPaymentRequired:
		return "your API quota may be exhausted; check your billing"
	default:
		return fmt.Sprintf("HTTP %d; check your network connection", status)
	}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxDetailLen {
		return s[:maxDetailLen] + "..."
	}
	return s
}
