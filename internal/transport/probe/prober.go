// Package probe checks whether candidate URLs are reachable.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/backoff"
	"github.com/kailas-cloud/fetchr/internal/metrics"
	"github.com/kailas-cloud/fetchr/internal/transport/httperr"
)

// DefaultTimeout bounds a single HEAD request.
const DefaultTimeout = 5 * time.Second

const service = "probe"

// Prober issues HEAD requests. It never returns an error: every failure means unavailable.
type Prober struct {
	client  *http.Client
	backoff *backoff.Executor
	logger  *zap.Logger
}

// New creates a prober. client may be nil.
func New(client *http.Client, bo *backoff.Executor, logger *zap.Logger) *Prober {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{client: client, backoff: bo, logger: logger}
}

// Probe implements retry.Prober. True iff the final response status is 2xx.
func (p *Prober) Probe(ctx context.Context, url string) bool {
	_, err := backoff.Do(ctx, p.backoff, service, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.head(ctx, url)
	})
	if err != nil {
		p.logger.Debug("Candidate unavailable", zap.String("url", url), zap.Error(err))
		metrics.ProbesTotal.WithLabelValues("unavailable").Inc()
		return false
	}
	metrics.ProbesTotal.WithLabelValues("available").Inc()
	return true
}

func (p *Prober) head(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httperr.New(service, resp.StatusCode, nil)
	}
	return nil
}
