package decision

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

// DefaultTTL is how long a session's decisions are kept.
const DefaultTTL = 24 * time.Hour

var keyPrefix = domain.KeyPrefix + "decisions:"

// store is the consumer interface for the decision sink (ISP).
type store interface {
	RPush(ctx context.Context, key string, values ...[]byte) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo persists session decision logs.
type Repo struct {
	store  store
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a decision repo. ttl <= 0 uses DefaultTTL.
func New(s store, ttl time.Duration, logger *zap.Logger) *Repo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, ttl: ttl, logger: logger}
}

// Key returns the list key for a session.
func Key(sessionID string) string {
	return keyPrefix + sessionID
}

// Sink returns a domain.DecisionSink writing to the given session.
func (r *Repo) Sink(sessionID string) domain.DecisionSink {
	return &sink{repo: r, key: Key(sessionID), sessionID: sessionID}
}

// List returns the stored decisions of a session in order.
func (r *Repo) List(ctx context.Context, sessionID string) ([]domain.Decision, error) {
	raw, err := r.store.LRange(ctx, Key(sessionID), 0, -1)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Decision, 0, len(raw))
	for _, data := range raw {
		var d domain.Decision
		if err := json.Unmarshal(data, &d); err != nil {
			r.logger.Warn("Skipping malformed decision", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type sink struct {
	repo      *Repo
	key       string
	sessionID string
}

// AppendDecisions writes the batch in one RPUSH. Failures are logged only.
func (s *sink) AppendDecisions(ctx context.Context, batch []domain.Decision) {
	values := make([][]byte, 0, len(batch))
	for _, d := range batch {
		data, err := json.Marshal(d)
		if err != nil {
			continue
		}
		values = append(values, data)
	}
	if len(values) == 0 {
		return
	}

	if err := s.repo.store.RPush(ctx, s.key, values...); err != nil {
		s.repo.logger.Warn("Failed to persist decisions",
			zap.String("session_id", s.sessionID),
			zap.Int("count", len(values)),
			zap.Error(err),
		)
		return
	}
	if err := s.repo.store.Expire(ctx, s.key, s.repo.ttl, true); err != nil {
		s.repo.logger.Warn("Failed to set decision log TTL", zap.String("session_id", s.sessionID), zap.Error(err))
	}
}
