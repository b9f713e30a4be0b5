package fetchr

import (
	"context"
	"fmt"
	"time"
)

// Rate records a verdict on a delivered image. Later expansions see it as
// an example to follow or avoid. Requires WithRedis.
func (c *Client) Rate(ctx context.Context, f Feedback) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("rate", start, err, "rating", string(f.Rating)) }()

	if c.feedback == nil {
		return ErrStorageDisabled
	}
	if err = c.feedback.Append(ctx, feedbackToDomain(f)); err != nil {
		return fmt.Errorf("rate: %w", err)
	}
	return nil
}

// FeedbackStats counts recent ratings. Requires WithRedis.
func (c *Client) FeedbackStats(ctx context.Context) (st FeedbackStats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("feedback_stats", start, err) }()

	if c.feedback == nil {
		return FeedbackStats{}, ErrStorageDisabled
	}
	ds, err := c.feedback.Stats(ctx)
	if err != nil {
		return FeedbackStats{}, fmt.Errorf("feedback stats: %w", err)
	}
	return FeedbackStats{Up: ds.Up, Down: ds.Down, Skipped: ds.Skipped}, nil
}
