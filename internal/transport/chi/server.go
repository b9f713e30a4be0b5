package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/domain"
	logpkg "github.com/kailas-cloud/fetchr/internal/logger"
	healthuc "github.com/kailas-cloud/fetchr/internal/usecase/health"
	"github.com/kailas-cloud/fetchr/internal/usecase/session"
)

// Request limits.
const (
	DefaultMaxRetries = 3
	maxBodyBytes      = 1 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// errorRule maps a sentinel onto an HTTP status and code.
type errorRule struct {
	sentinel error
	status   int
	code     ErrorCode
}

// First match wins.
var errorRules = []errorRule{
	{domain.ErrInvalidArgument, http.StatusBadRequest, ErrorCodeValidationFailed},
	{domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound},
	{domain.ErrStorageDisabled, http.StatusServiceUnavailable, ErrorCodeStorageDisabled},
	{domain.ErrQuotaExceeded, http.StatusTooManyRequests, ErrorCodeQuotaExceeded},
	{domain.ErrConfiguration, http.StatusInternalServerError, ErrorCodeConfigurationError},
	{domain.ErrTransient, http.StatusTooManyRequests, ErrorCodeRateLimited},
	{domain.ErrFormat, http.StatusBadGateway, ErrorCodeMalformedResponse},
	{domain.ErrProviderError, http.StatusBadGateway, ErrorCodeProviderError},
}

// Server serves the retrieval API.
type Server struct {
	sessions      sessionRunner
	health        healthChecker
	decisions     decisionReader
	feedback      feedbackStore
	usage         usageStore
	budget        budgetReader
	maxRetries    int
	now           func() time.Time
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. Persistence-backed endpoints answer
// storage_disabled until their stores are attached.
func NewServer(sessions sessionRunner, health healthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sessions:   sessions,
		health:     health,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
		logger:     logger,
	}
	for _, rule := range errorRules {
		s.errorHandlers = append(s.errorHandlers, sentinelHandler(rule.sentinel, rule.status, rule.code))
	}
	return s
}

// WithDecisions attaches the persisted decision log.
func (s *Server) WithDecisions(d decisionReader) *Server {
	s.decisions = d
	return s
}

// WithFeedback attaches the feedback store.
func (s *Server) WithFeedback(f feedbackStore) *Server {
	s.feedback = f
	return s
}

// WithUsage attaches the token usage store.
func (s *Server) WithUsage(u usageStore) *Server {
	s.usage = u
	return s
}

// WithBudget attaches the daily token budget reported by GET /v1/usage.
func (s *Server) WithBudget(b budgetReader) *Server {
	s.budget = b
	return s
}

// WithMaxRetries sets the attempt budget used when a request omits one.
func (s *Server) WithMaxRetries(n int) *Server {
	if n > 0 {
		s.maxRetries = n
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r gochi.Router) {
		r.Post("/find", s.Find)
		r.Get("/sessions/{id}/decisions", s.GetDecisions)
		r.Post("/feedback", s.PostFeedback)
		r.Get("/feedback/stats", s.GetFeedbackStats)
		r.Get("/feedback/context", s.GetLearningContext)
		r.Get("/usage", s.GetUsage)
	})
}

// Find handles POST /v1/find. Per-query failures are reported inside a 200.
func (s *Server) Find(w http.ResponseWriter, r *http.Request) {
	var req FindRequest
	if !s.decode(w, r, &req) {
		return
	}

	queries := req.Queries
	if req.Query != "" {
		queries = append([]string{req.Query}, queries...)
	}
	maxRetries := s.maxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.sessions.Run(ctx, session.Request{
		Queries:    queries,
		MaxRetries: maxRetries,
		Verbose:    req.Verbose,
	})
	setExpansionHeaders(w, usage)
	s.recordUsage(r, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := findResponse(report, req.Verbose)
	logpkg.FromContext(r.Context()).Debug("Session served",
		zap.String("session_id", report.ID),
		zap.Int("found", resp.Summary.Found),
		zap.Int("exhausted", resp.Summary.Exhausted),
		zap.Int("failed", resp.Summary.Failed),
		zap.Int64("expansion_tokens", usage.TotalTokens()),
	)
	writeJSON(w, http.StatusOK, resp)
}

// GetDecisions handles GET /v1/sessions/{id}/decisions.
func (s *Server) GetDecisions(w http.ResponseWriter, r *http.Request) {
	if s.decisions == nil {
		s.handleDomainError(w, domain.ErrStorageDisabled)
		return
	}
	id := gochi.URLParam(r, "id")

	entries, err := s.decisions.List(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if len(entries) == 0 {
		s.handleDomainError(w, fmt.Errorf("session %q: %w", id, domain.ErrNotFound))
		return
	}

	log := domain.NewDecisionLog(nil)
	for _, d := range entries {
		log.Record(d.Query, d.Action, d.Reason)
	}
	writeJSON(w, http.StatusOK, DecisionsResponse{
		SessionID: id,
		Decisions: decisionsToDTO(entries),
		Summary:   log.Summary(),
	})
}

// PostFeedback handles POST /v1/feedback.
func (s *Server) PostFeedback(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		s.handleDomainError(w, domain.ErrStorageDisabled)
		return
	}
	var req FeedbackRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.feedback.Append(r.Context(), feedbackFromDTO(req)); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FeedbackResponse{Status: "recorded"})
}

// GetFeedbackStats handles GET /v1/feedback/stats.
func (s *Server) GetFeedbackStats(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		s.handleDomainError(w, domain.ErrStorageDisabled)
		return
	}
	st, err := s.feedback.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FeedbackStatsResponse{
		FeedbackStats: st,
		Total:         st.Up + st.Down + st.Skipped,
	})
}

// GetLearningContext handles GET /v1/feedback/context.
func (s *Server) GetLearningContext(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		s.handleDomainError(w, domain.ErrStorageDisabled)
		return
	}
	writeJSON(w, http.StatusOK, LearningContextResponse{Context: s.feedback.LearningContext(r.Context())})
}

// GetUsage handles GET /v1/usage. Without a usage store the in-process
// budget counter is reported.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var tokens int64
	switch {
	case s.usage != nil:
		n, err := s.usage.Today(r.Context())
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		tokens = n
	case s.budget != nil:
		tokens = s.budget.DailyUsed()
	default:
		s.handleDomainError(w, domain.ErrStorageDisabled)
		return
	}

	resp := UsageResponse{
		Date:            s.now().UTC().Format("2006-01-02"),
		ExpansionTokens: tokens,
	}
	if s.budget != nil && s.budget.DailyLimit() > 0 {
		limit, remaining := s.budget.DailyLimit(), s.budget.RemainingDaily()
		resp.DailyLimit = &limit
		resp.Remaining = &remaining
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) recordUsage(r *http.Request, usage *domain.ExpansionUsage) {
	if s.usage == nil || usage.TotalTokens() == 0 {
		return
	}
	// Detached from the request so a client disconnect does not lose the count.
	ctx := context.WithoutCancel(r.Context())
	if err := s.usage.AddTokens(ctx, usage.TotalTokens()); err != nil {
		s.logger.Warn("Failed to record expansion usage", zap.Error(err))
	}
}

func findResponse(report *session.Report, verbose bool) FindResponse {
	resp := FindResponse{
		SessionID: report.ID,
		Results:   make([]QueryResult, len(report.Results)),
		Summary:   SessionSummary{Total: len(report.Results)},
	}
	for i, res := range report.Results {
		resp.Results[i] = queryResultToDTO(res)
		switch res.Status {
		case session.StatusFound:
			resp.Summary.Found++
		case session.StatusExhausted:
			resp.Summary.Exhausted++
		case session.StatusFailed:
			resp.Summary.Failed++
		}
	}
	if verbose && report.Log != nil {
		resp.Decisions = decisionsToDTO(report.Log.Entries())
		resp.Log = report.Log.Summary()
	}
	return resp
}

func queryResultToDTO(res session.Result) QueryResult {
	out := QueryResult{
		Query:    res.Query,
		Status:   res.Status,
		Message:  res.Message(),
		Attempts: res.Attempts,
	}
	switch {
	case res.Status == session.StatusFound && res.Match != nil:
		c := res.Match.Candidate
		d := res.Match.Directive
		out.Image = &ImageItem{ID: c.ID, Title: c.Title, URL: c.URL, Width: c.Width, Height: c.Height}
		out.Directive = &DirectiveItem{
			Query:     d.Query(),
			ImageSize: string(d.ImageSize()),
			ImageType: string(d.ImageType()),
		}
	case res.Status == session.StatusFailed:
		msg := safeDomainMessage(res.Err)
		out.Message = "could not complete: " + msg
		out.Error = &ErrorResponse{Code: errorCode(res.Err), Message: msg}
	}
	return out
}

func setExpansionHeaders(w http.ResponseWriter, usage *domain.ExpansionUsage) {
	if usage.Calls() > 0 {
		w.Header().Set("X-Expansion-Tokens", strconv.FormatInt(usage.TotalTokens(), 10))
		w.Header().Set("X-Expansion-Calls", strconv.FormatInt(usage.Calls(), 10))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Provider failures and configuration problems are actionable for the caller,
// so their text is passed through.
func safeDomainMessage(err error) string {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Error()
		if apiErr.Hint != "" {
			msg += " (" + apiErr.Hint + ")"
		}
		return msg
	}
	if errors.Is(err, domain.ErrConfiguration) ||
		errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrQuotaExceeded) {
		return err.Error()
	}
	for _, rule := range errorRules {
		if errors.Is(err, rule.sentinel) {
			return rule.sentinel.Error()
		}
	}
	return "internal error"
}

// errorCode maps an error onto its code, internal_error when unknown.
func errorCode(err error) ErrorCode {
	for _, rule := range errorRules {
		if errors.Is(err, rule.sentinel) {
			return rule.code
		}
	}
	return ErrorCodeInternalError
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
