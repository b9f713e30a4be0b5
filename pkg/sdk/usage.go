package fetchr

import (
	"context"
	"fmt"
	"time"
)

// Usage reports today's expansion token spend.
type Usage struct {
	Date       string // UTC, YYYY-MM-DD
	Tokens     int64
	DailyLimit int64 // 0 when unlimited
	Remaining  int64 // -1 when unlimited
}

// Usage returns today's token spend. With WithRedis the stored counter is
// reported, otherwise the in-process one.
func (c *Client) Usage(ctx context.Context) (u Usage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	u = Usage{Date: start.UTC().Format("2006-01-02"), Remaining: -1}
	if c.budget != nil {
		u.Tokens = c.budget.DailyUsed()
		u.DailyLimit = c.budget.DailyLimit()
		u.Remaining = c.budget.RemainingDaily()
	}
	if c.usage != nil {
		if u.Tokens, err = c.usage.Today(ctx); err != nil {
			return Usage{}, fmt.Errorf("usage: %w", err)
		}
	}
	return u, nil
}
