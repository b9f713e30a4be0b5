package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

// Key is the list holding rated results, oldest first.
var Key = domain.KeyPrefix + "feedback"

// Defaults for learning context rendering.
const (
	DefaultExamples = 3
	DefaultWindow   = 200
)

// store is the consumer interface for feedback history (ISP).
type store interface {
	RPush(ctx context.Context, key string, values ...[]byte) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}

// Store keeps feedback history in a list and renders learning context from it.
type Store struct {
	store    store
	examples int
	window   int64
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a feedback store.
func New(s store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		store:    s,
		examples: DefaultExamples,
		window:   DefaultWindow,
		now:      time.Now,
		logger:   logger,
	}
}

// WithExamples sets how many liked and disliked examples are rendered.
func (s *Store) WithExamples(n int) *Store {
	if n > 0 {
		s.examples = n
	}
	return s
}

// WithWindow sets how many of the most recent entries are scanned.
func (s *Store) WithWindow(n int) *Store {
	if n > 0 {
		s.window = int64(n)
	}
	return s
}

// Append validates and stores an entry. A zero timestamp is set to now.
func (s *Store) Append(ctx context.Context, e domain.FeedbackEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	if err := s.store.RPush(ctx, Key, data); err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	return nil
}

// Stats counts ratings across the scanned window.
func (s *Store) Stats(ctx context.Context) (domain.FeedbackStats, error) {
	entries, err := s.recent(ctx)
	if err != nil {
		return domain.FeedbackStats{}, err
	}
	var st domain.FeedbackStats
	for _, e := range entries {
		switch e.Rating {
		case domain.RatingUp:
			st.Up++
		case domain.RatingDown:
			st.Down++
		case domain.RatingSkip:
			st.Skipped++
		}
	}
	return st, nil
}

// LearningContext renders liked and disliked examples, most recent first.
// Read errors are logged and yield an empty context.
func (s *Store) LearningContext(ctx context.Context) string {
	entries, err := s.recent(ctx)
	if err != nil {
		s.logger.Warn("Failed to load feedback history", zap.Error(err))
		return ""
	}

	var good, bad []domain.FeedbackEntry
	for i := len(entries) - 1; i >= 0; i-- {
		switch e := entries[i]; {
		case e.Rating == domain.RatingUp && len(good) < s.examples:
			good = append(good, e)
		case e.Rating == domain.RatingDown && len(bad) < s.examples:
			bad = append(bad, e)
		}
	}
	if len(good) == 0 && len(bad) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\nBased on past feedback from the user:\n")
	if len(good) > 0 {
		b.WriteString("Good results (user liked these):\n")
		writeExamples(&b, good)
	}
	if len(bad) > 0 {
		b.WriteString("Bad results (user disliked these - avoid similar patterns):\n")
		writeExamples(&b, bad)
	}
	return b.String()
}

func writeExamples(b *strings.Builder, entries []domain.FeedbackEntry) {
	for _, e := range entries {
		fmt.Fprintf(b, "- %q -> %q [filters: size=%s, type=%s]\n",
			e.OriginalQuery, e.ExpandedQuery, orNone(e.Filters.ImageSize), orNone(e.Filters.ImageType))
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// recent returns the tail window in storage order. Undecodable entries are skipped.
func (s *Store) recent(ctx context.Context) ([]domain.FeedbackEntry, error) {
	raw, err := s.store.LRange(ctx, Key, -s.window, -1)
	if err != nil {
		return nil, fmt.Errorf("read feedback: %w", err)
	}
	out := make([]domain.FeedbackEntry, 0, len(raw))
	for _, data := range raw {
		var e domain.FeedbackEntry
		if err := json.Unmarshal(data, &e); err != nil {
			s.logger.Warn("Skipping malformed feedback entry", zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
