package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

// Session limits.
const (
	DefaultConcurrency = 4
	MaxQueries         = 20
)

// Request is one multi-query session.
type Request struct {
	Queries    []string
	MaxRetries int
	Verbose    bool
}

// Report is the outcome of a session.
type Report struct {
	ID      string
	Results []Result
	Log     *domain.DecisionLog
}

// Service runs independent queries concurrently and collects their decisions
// into one session log.
type Service struct {
	finder      Finder
	sinks       SinkFactory
	concurrency int
	maxQueries  int
	logger      *zap.Logger
}

// New creates a session service.
func New(finder Finder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		finder:      finder,
		concurrency: DefaultConcurrency,
		maxQueries:  MaxQueries,
		logger:      logger,
	}
}

// WithConcurrency sets how many queries run at once.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// WithMaxQueries caps the number of queries per session.
func (s *Service) WithMaxQueries(n int) *Service {
	if n > 0 {
		s.maxQueries = n
	}
	return s
}

// WithSinks attaches a decision sink to every new session log.
func (s *Service) WithSinks(f SinkFactory) *Service {
	s.sinks = f
	return s
}

// Run executes every query and returns results in request order. A failing
// query never cancels the others; its error is reported in its Result.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	if len(req.Queries) == 0 {
		return nil, fmt.Errorf("%w: at least one query is required", domain.ErrInvalidArgument)
	}
	if len(req.Queries) > s.maxQueries {
		return nil, fmt.Errorf("%w: at most %d queries per session, got %d",
			domain.ErrInvalidArgument, s.maxQueries, len(req.Queries))
	}
	if req.MaxRetries < 1 {
		return nil, fmt.Errorf("%w: max retries must be at least 1, got %d",
			domain.ErrInvalidArgument, req.MaxRetries)
	}
	queries := make([]string, len(req.Queries))
	for i, q := range req.Queries {
		queries[i] = strings.TrimSpace(q)
		if queries[i] == "" {
			return nil, fmt.Errorf("%w: query %d is empty", domain.ErrInvalidArgument, i)
		}
	}

	id := uuid.NewString()
	var sink domain.DecisionSink
	if s.sinks != nil {
		sink = s.sinks(id)
	}
	log := domain.NewDecisionLog(sink)
	results := make([]Result, len(queries))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			// Private buffer keeps this query's entries contiguous in the session log.
			buf := domain.NewDecisionLog(nil)
			results[i] = s.one(ctx, q, req.MaxRetries, buf, req.Verbose)
			log.Merge(ctx, buf)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Session finished",
		zap.String("session_id", id),
		zap.Int("queries", len(queries)),
		zap.Int("found", count(results, StatusFound)),
		zap.Int("failed", count(results, StatusFailed)),
	)
	return &Report{ID: id, Results: results, Log: log}, nil
}

func (s *Service) one(
	ctx context.Context, query string, maxRetries int, buf *domain.DecisionLog, verbose bool,
) Result {
	m, err := s.finder.FindWithRetry(ctx, query, maxRetries, buf, verbose)
	switch {
	case err != nil:
		return newFailed(query, err)
	case m == nil:
		return newExhausted(query, maxRetries)
	default:
		return newFound(query, m)
	}
}

func count(results []Result, status Status) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}
