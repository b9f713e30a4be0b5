package chi

import (
	"github.com/kailas-cloud/fetchr/internal/domain"
	"github.com/kailas-cloud/fetchr/internal/usecase/session"
)

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeStorageDisabled    ErrorCode = "storage_disabled"
	ErrorCodeConfigurationError ErrorCode = "configuration_error"
	ErrorCodeRateLimited        ErrorCode = "rate_limited"
	ErrorCodeQuotaExceeded      ErrorCode = "quota_exceeded"
	ErrorCodeMalformedResponse  ErrorCode = "malformed_response"
	ErrorCodeProviderError      ErrorCode = "provider_error"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// FindRequest is the body of POST /v1/find.
type FindRequest struct {
	Query      string   `json:"query,omitempty"`
	Queries    []string `json:"queries,omitempty"`
	MaxRetries *int     `json:"max_retries,omitempty"`
	Verbose    bool     `json:"verbose,omitempty"`
}

// FindResponse is the body of a completed session.
type FindResponse struct {
	SessionID string         `json:"session_id"`
	Results   []QueryResult  `json:"results"`
	Decisions []DecisionItem `json:"decisions,omitempty"`
	Log       string         `json:"log,omitempty"`
	Summary   SessionSummary `json:"summary"`
}

// SessionSummary counts query outcomes.
type SessionSummary struct {
	Total     int `json:"total"`
	Found     int `json:"found"`
	Exhausted int `json:"exhausted"`
	Failed    int `json:"failed"`
}

// QueryResult is the outcome of one query.
type QueryResult struct {
	Query     string         `json:"query"`
	Status    session.Status `json:"status"`
	Message   string         `json:"message"`
	Attempts  int            `json:"attempts"`
	Image     *ImageItem     `json:"image,omitempty"`
	Directive *DirectiveItem `json:"directive,omitempty"`
	Error     *ErrorResponse `json:"error,omitempty"`
}

// ImageItem is an accepted image.
type ImageItem struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// DirectiveItem is the search directive that found an image.
type DirectiveItem struct {
	Query     string `json:"query"`
	ImageSize string `json:"img_size,omitempty"`
	ImageType string `json:"img_type,omitempty"`
}

// DecisionItem is one decision log entry.
type DecisionItem struct {
	Query  string `json:"query"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// DecisionsResponse is the body of GET /v1/sessions/{id}/decisions.
type DecisionsResponse struct {
	SessionID string         `json:"session_id"`
	Decisions []DecisionItem `json:"decisions"`
	Summary   string         `json:"summary"`
}

// FeedbackRequest is the body of POST /v1/feedback.
type FeedbackRequest struct {
	OriginalQuery string        `json:"original_query"`
	ExpandedQuery string        `json:"expanded_query"`
	ImageSize     string        `json:"img_size,omitempty"`
	ImageType     string        `json:"img_type,omitempty"`
	ImageURL      string        `json:"image_url"`
	ImageTitle    string        `json:"image_title"`
	Rating        domain.Rating `json:"rating"`
}

// FeedbackResponse acknowledges a recorded rating.
type FeedbackResponse struct {
	Status string `json:"status"`
}

// FeedbackStatsResponse is the body of GET /v1/feedback/stats.
type FeedbackStatsResponse struct {
	domain.FeedbackStats
	Total int `json:"total"`
}

// LearningContextResponse is the body of GET /v1/feedback/context.
type LearningContextResponse struct {
	Context string `json:"context"`
}

// UsageResponse is the body of GET /v1/usage.
// DailyLimit and Remaining are set only when a token budget is configured.
type UsageResponse struct {
	Date            string `json:"date"`
	ExpansionTokens int64  `json:"expansion_tokens"`
	DailyLimit      *int64 `json:"daily_limit,omitempty"`
	Remaining       *int64 `json:"remaining,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func decisionsToDTO(entries []domain.Decision) []DecisionItem {
	out := make([]DecisionItem, len(entries))
	for i, d := range entries {
		out[i] = DecisionItem{Query: d.Query, Action: d.Action, Reason: d.Reason}
	}
	return out
}

func feedbackFromDTO(req FeedbackRequest) domain.FeedbackEntry {
	return domain.FeedbackEntry{
		OriginalQuery: req.OriginalQuery,
		ExpandedQuery: req.ExpandedQuery,
		Filters: domain.FeedbackFilters{
			ImageSize: req.ImageSize,
			ImageType: req.ImageType,
		},
		ImageURL:   req.ImageURL,
		ImageTitle: req.ImageTitle,
		Rating:     req.Rating,
	}
}
