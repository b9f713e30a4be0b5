package session

import (
	"context"

	"github.com/kailas-cloud/fetchr/internal/domain"
	"github.com/kailas-cloud/fetchr/internal/usecase/retry"
)

// Finder resolves a single request through the retry loop.
type Finder interface {
	FindWithRetry(
		ctx context.Context, request string, maxRetries int, log domain.Recorder, verbose bool,
	) (*retry.Match, error)
}

// SinkFactory returns a decision sink bound to a session ID. It may return nil.
type SinkFactory func(sessionID string) domain.DecisionSink
