package fetchr

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	expansionKey   string
	expansionURL   string
	expansionModel string
	temperature    float32

	searchKey      string
	searchEndpoint string

	addrs    []string
	password string

	httpClient     *http.Client
	minDimension   int
	candidateLimit int
	concurrency    int

	dailyTokenLimit int64
	budgetWarnOnly  bool

	backoffSet        bool
	backoffRetries    int
	backoffDelay      time.Duration
	backoffMultiplier float64
	notify            func(string)

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithGemini sets the expansion API key for the default Gemini endpoint.
func WithGemini(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.expansionKey = apiKey
	})
}

// WithExpansionModel points expansion at another OpenAI-compatible endpoint or model.
// Empty values keep the defaults.
func WithExpansionModel(baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.expansionURL = baseURL
		c.expansionModel = model
	})
}

// WithTemperature sets the expansion sampling temperature.
func WithTemperature(t float32) Option {
	return optionFunc(func(c *clientConfig) {
		c.temperature = t
	})
}

// WithSerper sets the image search API key.
func WithSerper(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.searchKey = apiKey
	})
}

// WithSearchEndpoint overrides the image search endpoint.
func WithSearchEndpoint(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.searchEndpoint = url
	})
}

// WithRedis enables feedback learning and decision persistence.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithHTTPClient sets the client used for search and probes.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithMinDimension sets the smallest accepted width and height in pixels.
// Default: 32.
func WithMinDimension(px int) Option {
	return optionFunc(func(c *clientConfig) {
		c.minDimension = px
	})
}

// WithCandidateLimit sets how many candidates each attempt requests (1..10).
// Default: 5.
func WithCandidateLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.candidateLimit = n
	})
}

// WithConcurrency sets how many queries of a FindAll run at once.
// Default: 4.
func WithConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = n
	})
}

// WithDailyTokenLimit caps expansion tokens per UTC day. Once spent, Find
// fails with ErrQuotaExceeded; with warnOnly it only logs. 0 is unlimited.
// With WithRedis the count survives restarts.
func WithDailyTokenLimit(tokens int64, warnOnly bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.dailyTokenLimit = tokens
		c.budgetWarnOnly = warnOnly
	})
}

// WithBackoff configures retries of rate-limited provider calls.
// Defaults: 3 retries, 1s initial delay, multiplier 2.
func WithBackoff(maxRetries int, initialDelay time.Duration, multiplier float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.backoffSet = true
		c.backoffRetries = maxRetries
		c.backoffDelay = initialDelay
		c.backoffMultiplier = multiplier
	})
}

// WithNotifier receives a line such as "Rate limited by Serper, retrying in 2s..."
// before every backoff sleep.
func WithNotifier(fn func(message string)) Option {
	return optionFunc(func(c *clientConfig) {
		c.notify = fn
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
