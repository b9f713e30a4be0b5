package fetchr

import (
	"context"

	"github.com/kailas-cloud/fetchr/internal/domain"
	healthuc "github.com/kailas-cloud/fetchr/internal/usecase/health"
	"github.com/kailas-cloud/fetchr/internal/usecase/retry"
	"github.com/kailas-cloud/fetchr/internal/usecase/session"
)

// --- finderUseCase mock ---

type mockFinder struct {
	findFn func(ctx context.Context, request string, maxRetries int, log domain.Recorder) (*retry.Match, error)
}

func (m *mockFinder) FindWithRetry(
	ctx context.Context, request string, maxRetries int, log domain.Recorder, _ bool,
) (*retry.Match, error) {
	return m.findFn(ctx, request, maxRetries, log)
}

// --- sessionUseCase mock ---

type mockSessions struct {
	runFn func(ctx context.Context, req session.Request) (*session.Report, error)
}

func (m *mockSessions) Run(ctx context.Context, req session.Request) (*session.Report, error) {
	return m.runFn(ctx, req)
}

// --- feedbackUseCase mock ---

type mockFeedback struct {
	appended []domain.FeedbackEntry
	stats    domain.FeedbackStats
	err      error
}

func (m *mockFeedback) Append(_ context.Context, e domain.FeedbackEntry) error {
	if m.err != nil {
		return m.err
	}
	m.appended = append(m.appended, e)
	return nil
}

func (m *mockFeedback) Stats(context.Context) (domain.FeedbackStats, error) {
	return m.stats, m.err
}

// --- healthUseCase mock ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- usageUseCase mock ---

type mockUsage struct {
	added int64
	today int64
}

func (m *mockUsage) AddTokens(_ context.Context, n int64) error {
	m.added += n
	return nil
}

func (m *mockUsage) Today(context.Context) (int64, error) { return m.today, nil }
