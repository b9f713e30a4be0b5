package domain

import (
	"context"
	"sync/atomic"
)

type expansionUsageKey struct{}

// ExpansionUsage collects language-model token usage for a single HTTP request.
// The handler puts a pointer into the context, the expansion transport adds to it,
// and the handler reads it for response headers. Queries of one request may run
// concurrently, so the counters are atomic.
type ExpansionUsage struct {
	totalTokens atomic.Int64
	calls       atomic.Int64
	parent      *ExpansionUsage
}

// NewContextWithUsage returns a context with an embedded usage collector.
// A collector already in ctx becomes its parent and sees every addition too.
func NewContextWithUsage(ctx context.Context) (context.Context, *ExpansionUsage) {
	u := &ExpansionUsage{parent: UsageFromContext(ctx)}
	return context.WithValue(ctx, expansionUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *ExpansionUsage {
	u, _ := ctx.Value(expansionUsageKey{}).(*ExpansionUsage)
	return u
}

// AddTokens records one expansion call and its consumed tokens.
func (u *ExpansionUsage) AddTokens(n int) {
	for ; u != nil; u = u.parent {
		u.totalTokens.Add(int64(n))
		u.calls.Add(1)
	}
}

// TotalTokens returns the tokens consumed so far.
func (u *ExpansionUsage) TotalTokens() int64 {
	if u == nil {
		return 0
	}
	return u.totalTokens.Load()
}

// Calls returns the number of expansion calls recorded.
func (u *ExpansionUsage) Calls() int64 {
	if u == nil {
		return 0
	}
	return u.calls.Load()
}
