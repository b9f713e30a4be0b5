package fetchr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/fetchr/internal/backoff"
	"github.com/kailas-cloud/fetchr/internal/db"
	dbRedis "github.com/kailas-cloud/fetchr/internal/db/redis"
	"github.com/kailas-cloud/fetchr/internal/domain"
	decisionrepo "github.com/kailas-cloud/fetchr/internal/repository/decision"
	feedbackrepo "github.com/kailas-cloud/fetchr/internal/repository/feedback"
	usagerepo "github.com/kailas-cloud/fetchr/internal/repository/usage"
	"github.com/kailas-cloud/fetchr/internal/transport/openai"
	"github.com/kailas-cloud/fetchr/internal/transport/probe"
	"github.com/kailas-cloud/fetchr/internal/transport/serper"
	"github.com/kailas-cloud/fetchr/internal/usecase/budget"
	healthuc "github.com/kailas-cloud/fetchr/internal/usecase/health"
	"github.com/kailas-cloud/fetchr/internal/usecase/retry"
	"github.com/kailas-cloud/fetchr/internal/usecase/session"
)

// DefaultMaxRetries is the attempt budget used when a call passes 0.
const DefaultMaxRetries = 3

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultBackoffRetries   = 3
	decisionTTL             = 24 * time.Hour
)

// Internal interfaces for substitution in tests.
type finderUseCase interface {
	FindWithRetry(
		ctx context.Context, request string, maxRetries int, log domain.Recorder, verbose bool,
	) (*retry.Match, error)
}

type sessionUseCase interface {
	Run(ctx context.Context, req session.Request) (*session.Report, error)
}

type usageUseCase interface {
	AddTokens(ctx context.Context, n int64) error
	Today(ctx context.Context) (int64, error)
}

type feedbackUseCase interface {
	Append(ctx context.Context, e domain.FeedbackEntry) error
	Stats(ctx context.Context) (domain.FeedbackStats, error)
}

// Client is the fetchr SDK entry point. Safe for concurrent use.
type Client struct {
	store     db.Store // nil without WithRedis
	finder    finderUseCase
	sessions  sessionUseCase
	feedback  feedbackUseCase // nil without WithRedis
	usage     usageUseCase    // nil without WithRedis
	budget    *budget.Tracker
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client. With WithRedis it connects and waits for the
// database; the provided context bounds that readiness check.
// Missing API keys are reported by the first Find, not here.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if len(cfg.addrs) > 0 {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("fetchr: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("fetchr: database not ready: %w", err)
		}
		store = s
	}

	return wireClient(store, cfg, obs), nil
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	retries := defaultBackoffRetries
	if cfg.backoffSet {
		retries = cfg.backoffRetries
	}
	bo := backoff.New(backoff.Config{
		MaxRetries:   retries,
		InitialDelay: cfg.backoffDelay,
		Multiplier:   cfg.backoffMultiplier,
		Notify:       cfg.notify,
	})

	expander := openai.NewExpander(&openai.Config{
		APIKey:      cfg.expansionKey,
		BaseURL:     cfg.expansionURL,
		Model:       cfg.expansionModel,
		Temperature: cfg.temperature,
		Backoff:     bo,
	})
	searcher := serper.New(serper.Config{
		APIKey:   cfg.searchKey,
		Endpoint: cfg.searchEndpoint,
		Client:   cfg.httpClient,
		Backoff:  bo,
	})
	prober := probe.New(cfg.httpClient, bo, nil)

	action := budget.ActionReject
	if cfg.budgetWarnOnly {
		action = budget.ActionWarn
	}
	tracker := budget.NewTracker(cfg.dailyTokenLimit, action, nil)
	guarded := budget.NewGuardedExpander(expander, tracker, nil)

	finder := retry.New(guarded, searcher, prober, nil).WithLimit(cfg.candidateLimit)
	if cfg.minDimension > 0 {
		finder = finder.WithMinDimension(cfg.minDimension)
	}
	sessions := session.New(finder, nil)
	if cfg.concurrency > 0 {
		sessions = sessions.WithConcurrency(cfg.concurrency)
	}

	c := &Client{
		store:    store,
		finder:   finder,
		sessions: sessions,
		budget:   tracker,
		obs:      obs,
	}

	// Pass nil interface (not typed nil pointer!) without a store.
	var pinger healthuc.DBPinger
	if store != nil {
		fb := feedbackrepo.New(store, nil)
		decisions := decisionrepo.New(store, decisionTTL, nil)
		usage := usagerepo.New(store, 0)
		finder.WithLearningContext(fb)
		sessions.WithSinks(decisions.Sink)
		tracker.Seed(context.Background(), usage)
		c.feedback = fb
		c.usage = usage
		pinger = store
	}
	c.healthSvc = healthuc.New(pinger, expander)
	return c
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Find resolves a single query, spending at most maxRetries attempts.
// A query that exhausts its budget is not an error: Found is false.
// Configuration, provider and transport failures are returned as errors.
func (c *Client) Find(ctx context.Context, query string, maxRetries int) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("find", start, err, "attempts", res.Attempts) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("%w: query is required", ErrInvalidArgument)
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	defer c.recordUsage(ctx, usage)

	log := domain.NewDecisionLog(nil)
	m, err := c.finder.FindWithRetry(ctx, query, maxRetries, log, true)
	if err != nil {
		return Result{}, fmt.Errorf("find %q: %w", query, err)
	}

	sr := session.Result{Query: query, Status: session.StatusExhausted, Attempts: maxRetries}
	if m != nil {
		sr = session.Result{Query: query, Status: session.StatusFound, Match: m, Attempts: m.Attempts}
	}
	res = resultFromSession(sr)
	res.Decisions = decisionsFromDomain(log.Entries())
	c.obs.observeQuery(res)
	return res, nil
}

// FindAll runs independent queries concurrently. Results keep request order
// and a failing query never cancels the others; its error is in Result.Err.
// verbose fills Session.Decisions and Session.Log.
func (c *Client) FindAll(
	ctx context.Context, queries []string, maxRetries int, verbose bool,
) (s *Session, err error) {
	start := time.Now()
	defer func() { c.obs.observe("find_all", start, err, "queries", len(queries)) }()

	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	ctx, usage := domain.NewContextWithUsage(ctx)
	defer c.recordUsage(ctx, usage)

	report, err := c.sessions.Run(ctx, session.Request{
		Queries:    queries,
		MaxRetries: maxRetries,
		Verbose:    verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("find all: %w", err)
	}

	s = &Session{ID: report.ID, Results: make([]Result, len(report.Results))}
	for i, r := range report.Results {
		s.Results[i] = resultFromSession(r)
		c.obs.observeQuery(s.Results[i])
	}
	if report.Log != nil {
		s.Decisions = decisionsFromDomain(report.Log.Entries())
		s.Log = report.Log.Summary()
	}
	return s, nil
}

// recordUsage persists the tokens one call spent. Failures are only logged.
func (c *Client) recordUsage(ctx context.Context, u *domain.ExpansionUsage) {
	if c.usage == nil || u.TotalTokens() == 0 {
		return
	}
	if err := c.usage.AddTokens(context.WithoutCancel(ctx), u.TotalTokens()); err != nil {
		c.obs.observe("record_usage", time.Now(), err)
	}
}

// Ping checks database connectivity. Without WithRedis it returns ErrStorageDisabled.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if c.store == nil {
		return ErrStorageDisabled
	}
	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
