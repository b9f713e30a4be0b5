package expcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/db"
	"github.com/kailas-cloud/fetchr/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "exp_cache:"

// DefaultTTL bounds how long an expansion stays reusable.
const DefaultTTL = time.Hour

// store is the consumer interface for the expansion cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type expander interface {
	Expand(ctx context.Context, request, learningContext string) (domain.SearchDirective, error)
}

// cachedDirective is the stored form of a SearchDirective.
type cachedDirective struct {
	Query     string           `json:"query"`
	ImageSize domain.ImageSize `json:"img_size,omitempty"`
	ImageType domain.ImageType `json:"img_type,omitempty"`
}

// CachedExpander caches directives in a key-value store.
type CachedExpander struct {
	inner      expander
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner expander,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedExpander {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedExpander{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Expand returns a cached directive or calls the inner expander.
// A hit consumes no tokens and records no usage.
func (c *CachedExpander) Expand(
	ctx context.Context, request, learningContext string,
) (domain.SearchDirective, error) {
	key := cacheKey(request, learningContext)

	if d, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return d, nil
	}

	c.incCache("miss")

	d, err := c.inner.Expand(ctx, request, learningContext)
	if err != nil {
		return domain.SearchDirective{}, err //nolint:wrapcheck // decorator is transparent
	}

	c.putToCache(ctx, key, d)
	return d, nil
}

func (c *CachedExpander) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(request, learningContext string) string {
	h := sha256.New()
	h.Write([]byte(request))
	h.Write([]byte{0})
	h.Write([]byte(learningContext))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedExpander) getFromCache(ctx context.Context, key string) (domain.SearchDirective, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached expansion", zap.String("key", key), zap.Error(err))
		}
		return domain.SearchDirective{}, false
	}
	if len(data) == 0 {
		return domain.SearchDirective{}, false
	}

	var cd cachedDirective
	if err := json.Unmarshal(data, &cd); err != nil {
		c.logger.Warn("Failed to parse cached expansion", zap.String("key", key), zap.Error(err))
		return domain.SearchDirective{}, false
	}
	d, err := domain.NewSearchDirective(cd.Query, cd.ImageSize, cd.ImageType)
	if err != nil {
		c.logger.Warn("Discarding invalid cached expansion", zap.String("key", key), zap.Error(err))
		return domain.SearchDirective{}, false
	}
	return d, true
}

func (c *CachedExpander) putToCache(ctx context.Context, key string, d domain.SearchDirective) {
	data, err := json.Marshal(cachedDirective{Query: d.Query(), ImageSize: d.ImageSize(), ImageType: d.ImageType()})
	if err != nil {
		c.logger.Warn("Failed to encode expansion", zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache expansion", zap.String("key", key), zap.Error(err))
	}
}
