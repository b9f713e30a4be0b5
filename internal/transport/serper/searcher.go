package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/backoff"
	"github.com/kailas-cloud/fetchr/internal/domain"
	"github.com/kailas-cloud/fetchr/internal/metrics"
	"github.com/kailas-cloud/fetchr/internal/transport/httperr"
)

// Defaults for the Serper image search API.
const (
	DefaultEndpoint = "https://google.serper.dev/images"
	DefaultTimeout  = 15 * time.Second
	MaxResults      = 10

	service = "Serper"
)

// Config holds the search provider settings.
type Config struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
	Backoff  *backoff.Executor
	Logger   *zap.Logger
}

// Searcher queries the Serper image search API.
type Searcher struct {
	apiKey   string
	endpoint string
	client   *http.Client
	backoff  *backoff.Executor
	logger   *zap.Logger
}

// New creates a searcher. A nil Client gets one with DefaultTimeout.
func New(cfg Config) *Searcher {
	s := &Searcher{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		client:   cfg.Client,
		backoff:  cfg.Backoff,
		logger:   cfg.Logger,
	}
	if s.endpoint == "" {
		s.endpoint = DefaultEndpoint
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: DefaultTimeout}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

type searchRequest struct {
	Q       string `json:"q"`
	Num     int    `json:"num"`
	ImgSize string `json:"imgSize,omitempty"`
	ImgType string `json:"imgType,omitempty"`
}

type searchResponse struct {
	Images []struct {
		Title       string `json:"title"`
		ImageURL    string `json:"imageUrl"`
		ImageWidth  int    `json:"imageWidth"`
		ImageHeight int    `json:"imageHeight"`
	} `json:"images"`
}

// Search implements retry.Searcher. Results keep provider ranking and are
// capped at min(limit, MaxResults).
func (s *Searcher) Search(
	ctx context.Context, d domain.SearchDirective, originalRequest string, limit int,
) ([]domain.Candidate, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: %s API key not set (SERPER_API_KEY)", domain.ErrConfiguration, service)
	}
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}

	body, err := json.Marshal(searchRequest{
		Q:       d.Query(),
		Num:     limit,
		ImgSize: string(d.ImageSize()),
		ImgType: string(d.ImageType()),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	resp, err := backoff.Do(ctx, s.backoff, service, func(ctx context.Context) (*searchResponse, error) {
		return s.post(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, min(len(resp.Images), limit))
	for _, img := range resp.Images {
		if len(out) == limit {
			break
		}
		if img.ImageURL == "" {
			continue
		}
		out = append(out, domain.NewCandidate(img.Title, img.ImageURL, img.ImageWidth, img.ImageHeight, originalRequest))
	}
	s.logger.Debug("Search finished",
		zap.String("directive", d.Query()),
		zap.String("filters", d.FilterLabel()),
		zap.Int("results", len(out)),
	)
	return out, nil
}

func (s *Searcher) post(ctx context.Context, body []byte) (*searchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.ProviderRequestDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(service, "error").Inc()
		return nil, fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderRequestsTotal.WithLabelValues(service, "error").Inc()
		return nil, httperr.FromResponse(service, resp)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(service, "error").Inc()
		return nil, fmt.Errorf("%w: failed to parse %s response: %v", domain.ErrFormat, service, err)
	}
	metrics.ProviderRequestsTotal.WithLabelValues(service, "success").Inc()
	return &out, nil
}
