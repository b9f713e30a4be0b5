package budget

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/domain"
	"github.com/kailas-cloud/fetchr/internal/metrics"
)

// GuardedExpander wraps an Expander with budget enforcement.
// Transport metrics and token counters are recorded in transport/openai;
// this layer owns the budget and its gauge only.
type GuardedExpander struct {
	inner   Expander
	tracker *Tracker
	logger  *zap.Logger
}

// NewGuardedExpander wraps an expander with a token budget.
func NewGuardedExpander(inner Expander, tracker *Tracker, logger *zap.Logger) *GuardedExpander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardedExpander{inner: inner, tracker: tracker, logger: logger}
}

// Expand checks the budget, delegates to the inner expander and records usage.
// Inner errors are returned unchanged.
func (g *GuardedExpander) Expand(
	ctx context.Context, request, learningContext string,
) (domain.SearchDirective, error) {
	if err := g.tracker.Check(ctx); err != nil {
		g.logger.Error("Expansion budget exceeded",
			zap.String("request", request),
			zap.Error(err),
		)
		return domain.SearchDirective{}, err
	}

	start := time.Now()
	callCtx, usage := domain.NewContextWithUsage(ctx)
	d, err := g.inner.Expand(callCtx, request, learningContext)

	// Failed calls may still have been billed.
	g.tracker.Record(usage.TotalTokens())
	metrics.ExpansionBudgetRemaining.Set(float64(g.tracker.RemainingDaily()))

	if err != nil {
		return domain.SearchDirective{}, err //nolint:wrapcheck // keep provider messages verbatim
	}

	g.logger.Debug("Expansion completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("total_tokens", usage.TotalTokens()),
		zap.Int64("remaining_daily", g.tracker.RemainingDaily()),
	)
	return d, nil
}
