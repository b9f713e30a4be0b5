package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

// Action defines behavior when the token budget is exceeded.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request.
	ActionReject Action = "reject"
)

// ParseAction validates a configured action. "" means reject.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "", ActionReject:
		return ActionReject, nil
	case ActionWarn:
		return ActionWarn, nil
	}
	return "", fmt.Errorf("%w: unknown budget action %q", domain.ErrInvalidArgument, s)
}

// Tracker is an in-memory daily token budget.
// Check never leaves the process; persistence of the counter is the usage store's job.
type Tracker struct {
	mu           sync.Mutex
	dailyUsed    int64
	dailyLimit   int64
	action       Action
	lastDayReset time.Time
	now          func() time.Time
	logger       *zap.Logger
}

// NewTracker creates a tracker. dailyLimit <= 0 means unlimited.
func NewTracker(dailyLimit int64, action Action, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		dailyLimit: dailyLimit,
		action:     action,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
	t.lastDayReset = truncateToDay(t.now())
	return t
}

// Seed loads today's persisted usage. A failing reader leaves the counter at zero.
func (t *Tracker) Seed(ctx context.Context, r UsageReader) *Tracker {
	used, err := r.Today(ctx)
	if err != nil {
		t.logger.Warn("Failed to load today's expansion usage", zap.Error(err))
		return t
	}

	t.mu.Lock()
	t.dailyUsed = used
	t.mu.Unlock()

	t.logger.Info("Expansion budget loaded",
		zap.Int64("daily_used", used),
		zap.Int64("daily_limit", t.dailyLimit),
	)
	return t
}

// Check verifies the budget allows a new expansion.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()
	if t.dailyLimit <= 0 || t.dailyUsed < t.dailyLimit {
		return nil
	}

	if t.action == ActionReject {
		return fmt.Errorf("%w: %d of %d tokens used today", domain.ErrQuotaExceeded, t.dailyUsed, t.dailyLimit)
	}

	t.logger.Warn("Expansion token budget exceeded",
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("daily_limit", t.dailyLimit),
	)
	return nil
}

// Record registers consumed tokens.
func (t *Tracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	t.dailyUsed += tokens
}

// RemainingDaily returns tokens left today, -1 if unlimited.
func (t *Tracker) RemainingDaily() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()
	if t.dailyLimit <= 0 {
		return -1
	}
	return max(t.dailyLimit-t.dailyUsed, 0)
}

// DailyLimit returns the daily token cap, 0 if unlimited.
func (t *Tracker) DailyLimit() int64 { return max(t.dailyLimit, 0) }

// DailyUsed returns tokens consumed today.
func (t *Tracker) DailyUsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.dailyUsed
}

// resetIfNeeded zeroes the counter when the UTC day rolls over.
func (t *Tracker) resetIfNeeded() {
	today := truncateToDay(t.now())
	if today.After(t.lastDayReset) {
		t.dailyUsed = 0
		t.lastDayReset = today
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
