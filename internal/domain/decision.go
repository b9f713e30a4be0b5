package domain

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Decision is a single entry in the decision log.
type Decision struct {
	Query  string `json:"query"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Recorder accepts decisions. Implementations must tolerate concurrent use.
type Recorder interface {
	Record(query, action, reason string)
}

// NopRecorder discards every decision.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(string, string, string) {}

// DecisionSink receives each batch merged into a DecisionLog, in merge order.
type DecisionSink interface {
	AppendDecisions(ctx context.Context, batch []Decision)
}

// DecisionLog is an append-only ordered record of decisions.
// The zero value is ready to use.
type DecisionLog struct {
	mu      sync.Mutex
	entries []Decision
	sink    DecisionSink
}

// NewDecisionLog creates a log. sink can be nil.
func NewDecisionLog(sink DecisionSink) *DecisionLog {
	return &DecisionLog{sink: sink}
}

// Record appends a single decision.
func (l *DecisionLog) Record(query, action, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Decision{Query: query, Action: action, Reason: reason})
}

// Merge appends all entries of other as one contiguous block and forwards
// the block to the sink. other is left untouched.
func (l *DecisionLog) Merge(ctx context.Context, other *DecisionLog) {
	if other == nil || other == l {
		return
	}
	batch := other.Entries()
	if len(batch) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, batch...)
	if l.sink != nil {
		l.sink.AppendDecisions(ctx, batch)
	}
}

// Entries returns a copy of all decisions in occurrence order.
func (l *DecisionLog) Entries() []Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Decision, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded decisions.
func (l *DecisionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Summary renders one "[query] action - reason" line per decision.
func (l *DecisionLog) Summary() string {
	entries := l.Entries()
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, d := range entries {
		fmt.Fprintf(&b, "[%s] %s - %s\n", d.Query, d.Action, d.Reason)
	}
	return b.String()
}
