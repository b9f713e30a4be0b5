package chi

import (
	"context"

	"github.com/kailas-cloud/fetchr/internal/domain"
	healthuc "github.com/kailas-cloud/fetchr/internal/usecase/health"
	"github.com/kailas-cloud/fetchr/internal/usecase/session"
)

// sessionRunner executes a multi-query session.
type sessionRunner interface {
	Run(ctx context.Context, req session.Request) (*session.Report, error)
}

// decisionReader loads persisted session decisions.
type decisionReader interface {
	List(ctx context.Context, sessionID string) ([]domain.Decision, error)
}

// feedbackStore records ratings and renders what was learned from them.
type feedbackStore interface {
	Append(ctx context.Context, e domain.FeedbackEntry) error
	Stats(ctx context.Context) (domain.FeedbackStats, error)
	LearningContext(ctx context.Context) string
}

// usageStore accumulates expansion token usage per day.
type usageStore interface {
	AddTokens(ctx context.Context, n int64) error
	Today(ctx context.Context) (int64, error)
}

// budgetReader exposes the daily expansion token budget.
type budgetReader interface {
	DailyLimit() int64
	DailyUsed() int64
	RemainingDaily() int64
}

// healthChecker aggregates component health.
type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
