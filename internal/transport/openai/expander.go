package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/backoff"
	"github.com/kailas-cloud/fetchr/internal/domain"
	"github.com/kailas-cloud/fetchr/internal/metrics"
	"github.com/kailas-cloud/fetchr/internal/transport/httperr"
)

// Defaults for the Gemini OpenAI-compatible endpoint.
const (
	DefaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel    = "gemini-2.0-flash"
	DefaultProvider = "Gemini"
)

// Expander turns a natural-language request into a SearchDirective using a
// chat model behind an OpenAI-compatible API.
type Expander struct {
	client      *openai.Client
	configured  bool
	model       string
	provider    string
	temperature float32
	backoff     *backoff.Executor
	logger      *zap.Logger
}

// Config holds the expansion provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Provider    string
	Temperature float32
	Backoff     *backoff.Executor
	Logger      *zap.Logger
}

// NewExpander creates an expander. An empty APIKey is accepted here and
// reported as a configuration error on first use.
func NewExpander(cfg *Config) *Expander {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = orDefault(cfg.BaseURL, DefaultBaseURL)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{
		client:      openai.NewClientWithConfig(clientCfg),
		configured:  cfg.APIKey != "",
		model:       orDefault(cfg.Model, DefaultModel),
		provider:    orDefault(cfg.Provider, DefaultProvider),
		temperature: cfg.Temperature,
		backoff:     cfg.Backoff,
		logger:      logger,
	}
}

// modelOutput is the JSON object the prompt asks the model for.
type modelOutput struct {
	Query   string  `json:"query"`
	ImgSize *string `json:"img_size"`
	ImgType *string `json:"img_type"`
}

// Expand implements retry.Expander.
func (e *Expander) Expand(ctx context.Context, request, learningContext string) (domain.SearchDirective, error) {
	if !e.configured {
		return domain.SearchDirective{}, fmt.Errorf("%w: %s API key not set (GEMINI_API_KEY)",
			domain.ErrConfiguration, e.provider)
	}

	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(request, learningContext)},
		},
		Temperature: e.temperature,
	}

	resp, err := backoff.Do(ctx, e.backoff, e.provider, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return e.complete(ctx, req)
	})
	if err != nil {
		return domain.SearchDirective{}, err
	}

	e.recordUsage(ctx, resp.Usage)

	if len(resp.Choices) == 0 {
		return domain.SearchDirective{}, fmt.Errorf("%w: no response from %s", domain.ErrFormat, e.provider)
	}
	return e.parse(resp.Choices[0].Message.Content)
}

func (e *Expander) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, req)
	metrics.ProviderRequestDuration.WithLabelValues(e.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(e.provider, "error").Inc()
		return openai.ChatCompletionResponse{}, e.toDomainError(err)
	}
	metrics.ProviderRequestsTotal.WithLabelValues(e.provider, "success").Inc()
	return resp, nil
}

func (e *Expander) recordUsage(ctx context.Context, u openai.Usage) {
	domain.UsageFromContext(ctx).AddTokens(u.TotalTokens)
	if u.TotalTokens > 0 {
		metrics.ExpansionTokensTotal.WithLabelValues(e.model, "prompt").Add(float64(u.PromptTokens))
		metrics.ExpansionTokensTotal.WithLabelValues(e.model, "completion").Add(float64(u.CompletionTokens))
		metrics.ExpansionTokensTotal.WithLabelValues(e.model, "total").Add(float64(u.TotalTokens))
	}
}

// parse decodes model content into a directive. Unknown filter values are
// dropped with a warning; a missing query is a format error.
func (e *Expander) parse(content string) (domain.SearchDirective, error) {
	cleaned := stripFences(content)

	var out modelOutput
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return domain.SearchDirective{}, fmt.Errorf("%w: failed to parse model response as JSON: %s",
			domain.ErrFormat, cleaned)
	}

	size, err := domain.ParseImageSize(deref(out.ImgSize))
	if err != nil {
		e.logger.Warn("Ignoring image size filter", zap.Error(err))
	}
	typ, err := domain.ParseImageType(deref(out.ImgType))
	if err != nil {
		e.logger.Warn("Ignoring image type filter", zap.Error(err))
	}

	d, err := domain.NewSearchDirective(out.Query, size, typ)
	if err != nil {
		return domain.SearchDirective{}, fmt.Errorf("%w: %s response has no query", domain.ErrFormat, e.provider)
	}
	return d, nil
}

// HealthCheck verifies API availability via ListModels.
func (e *Expander) HealthCheck(ctx context.Context) error {
	if !e.configured {
		return fmt.Errorf("%w: %s API key not set", domain.ErrConfiguration, e.provider)
	}
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", e.toDomainError(err))
	}
	return nil
}

// toDomainError maps client errors onto *domain.APIError so rate limits are
// visible to the backoff executor.
func (e *Expander) toDomainError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.APIError{
			Service:    e.provider,
			StatusCode: apiErr.HTTPStatusCode,
			Detail:     apiErr.Message,
			Hint:       httperr.Hint(e.provider, apiErr.HTTPStatusCode),
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return httperr.New(e.provider, reqErr.HTTPStatusCode, reqErr.Body)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s request failed: %v: %w", e.provider, err, domain.ErrProviderError)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
