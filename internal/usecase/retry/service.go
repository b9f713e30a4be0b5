package retry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/domain"
	"github.com/kailas-cloud/fetchr/internal/metrics"
)

// Search fan-out limits.
const (
	DefaultLimit = 5
	MaxLimit     = 10
)

// State is a step of the per-query attempt loop.
type State int

// Loop states. Accepted and Exhausted are terminal.
const (
	StateStart State = iota
	StateExpanding
	StateSearching
	StateValidating
	StateAccepted
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateExpanding:
		return "expanding"
	case StateSearching:
		return "searching"
	case StateValidating:
		return "validating"
	case StateAccepted:
		return "accepted"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Match is an accepted candidate together with the directive that found it.
type Match struct {
	Candidate domain.Candidate
	Directive domain.SearchDirective
	Attempts  int
}

// Service drives the bounded expand -> search -> validate loop.
type Service struct {
	expander     Expander
	searcher     Searcher
	prober       Prober
	validator    *Validator
	reformulator *Reformulator
	learning     LearningContextProvider
	limit        int
	logger       *zap.Logger
}

// New creates a retry service with the default fan-out and size gate.
func New(expander Expander, searcher Searcher, prober Prober, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		expander:     expander,
		searcher:     searcher,
		prober:       prober,
		validator:    NewValidator(prober, DefaultMinDimension),
		reformulator: NewReformulator(expander),
		limit:        DefaultLimit,
		logger:       logger,
	}
}

// WithLimit sets the number of candidates requested per attempt, clamped to [1, MaxLimit].
func (s *Service) WithLimit(limit int) *Service {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	s.limit = limit
	return s
}

// WithMinDimension sets the quality gate threshold.
func (s *Service) WithMinDimension(px int) *Service {
	s.validator = NewValidator(s.prober, px)
	return s
}

// WithLearningContext sets the provider of past-feedback hints. nil disables it.
func (s *Service) WithLearningContext(p LearningContextProvider) *Service {
	s.learning = p
	return s
}

// run holds the rolling state of one FindWithRetry call.
type run struct {
	request    string
	maxRetries int
	log        domain.Recorder
	verbose    bool
	learning   string

	attempt   int
	directive domain.SearchDirective
	results   []domain.Candidate
	failure   domain.FailureReason
	accepted  *domain.Candidate
}

func (r *run) record(action, reason string) {
	if r.verbose {
		r.log.Record(r.request, action, reason)
	}
}

// FindWithRetry searches for an acceptable candidate, reformulating the query after
// each failed attempt, for at most maxRetries attempts. It returns (nil, nil) when
// the budget is spent without a match. Errors from the expander or searcher abort
// the loop and are returned unchanged. log may be nil.
func (s *Service) FindWithRetry(
	ctx context.Context, request string, maxRetries int, log domain.Recorder, verbose bool,
) (*Match, error) {
	if maxRetries < 1 {
		return nil, fmt.Errorf("%w: max retries must be at least 1, got %d", domain.ErrInvalidArgument, maxRetries)
	}
	if log == nil {
		log = domain.NopRecorder{}
	}

	r := &run{request: request, maxRetries: maxRetries, log: log, verbose: verbose}
	if s.learning != nil {
		r.learning = s.learning.LearningContext(ctx)
	}

	state := StateStart
	for {
		next, err := s.step(ctx, r, state)
		if err != nil {
			s.logger.Warn("Query aborted",
				zap.String("query", request),
				zap.Int("attempt", r.attempt),
				zap.Stringer("state", state),
				zap.Error(err),
			)
			metrics.QueriesTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		state = next

		switch state {
		case StateAccepted:
			metrics.QueriesTotal.WithLabelValues("found").Inc()
			return &Match{Candidate: *r.accepted, Directive: r.directive, Attempts: r.attempt}, nil
		case StateExhausted:
			r.record("gave up", fmt.Sprintf("after %d attempts", maxRetries))
			s.logger.Info("Attempt budget spent",
				zap.String("query", request),
				zap.Int("attempts", maxRetries),
			)
			metrics.QueriesTotal.WithLabelValues("exhausted").Inc()
			return nil, nil
		}
	}
}

// step performs the work of one state and returns the next one.
func (s *Service) step(ctx context.Context, r *run, state State) (State, error) {
	switch state {
	case StateStart:
		r.attempt = 1
		return StateExpanding, nil

	case StateExpanding:
		r.record(fmt.Sprintf("attempt %d", r.attempt), "starting search")
		var (
			directive domain.SearchDirective
			err       error
		)
		if r.attempt == 1 || r.failure == nil {
			directive, err = s.expander.Expand(ctx, r.request, r.learning)
		} else {
			directive, err = s.reformulator.Reformulate(
				ctx, r.request, r.directive, r.failure, r.attempt, r.learning,
			)
		}
		if err != nil {
			return state, err
		}
		r.directive = directive
		s.logger.Debug("Directive ready",
			zap.String("query", r.request),
			zap.Int("attempt", r.attempt),
			zap.String("directive", directive.Query()),
			zap.String("image_size", string(directive.ImageSize())),
			zap.String("image_type", string(directive.ImageType())),
		)
		return StateSearching, nil

	case StateSearching:
		results, err := s.searcher.Search(ctx, r.directive, r.request, s.limit)
		if err != nil {
			return state, err
		}
		r.results = results
		return StateValidating, nil

	case StateValidating:
		if c := s.validate(ctx, r); c != nil {
			r.accepted = c
			metrics.AttemptsTotal.WithLabelValues(string(StatusAccepted)).Inc()
			return StateAccepted, nil
		}
		metrics.AttemptsTotal.WithLabelValues(string(r.failure.Kind())).Inc()
		s.logger.Info("Attempt failed",
			zap.String("query", r.request),
			zap.Int("attempt", r.attempt),
			zap.Int("max_attempts", r.maxRetries),
			zap.String("directive", r.directive.Query()),
			zap.Int("candidates", len(r.results)),
			zap.Stringer("reason", r.failure),
		)
		if r.attempt < r.maxRetries {
			r.attempt++
			return StateExpanding, nil
		}
		return StateExhausted, nil

	default:
		return state, fmt.Errorf("retry: no transition from state %s", state)
	}
}

// validate walks candidates in ranked order and returns the first accepted one.
// When none is accepted it stores the classified failure in r.failure.
func (s *Service) validate(ctx context.Context, r *run) *domain.Candidate {
	next := "will retry with reformulated query"
	if r.attempt >= r.maxRetries {
		next = "no attempts left"
	}

	if len(r.results) == 0 {
		r.failure = Classify(r.results, nil)
		r.record("no results", next)
		return nil
	}

	verdicts := make([]Verdict, 0, len(r.results))
	for _, c := range r.results {
		v := s.validator.Validate(ctx, c)
		verdicts = append(verdicts, v)

		switch v.Status {
		case StatusAccepted:
			r.record("found", "selected: "+c.Title)
			accepted := v.Candidate
			return &accepted
		case StatusTooSmall:
			r.record("rejected", v.Failure.String())
		case StatusUnavailable:
			r.record("url unavailable", c.URL)
		}
	}

	r.failure = Classify(r.results, verdicts)
	r.record("all urls failed", next)
	return nil
}
