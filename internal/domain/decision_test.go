package domain

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]Decision
}

func (s *recordingSink) AppendDecisions(_ context.Context, batch []Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
}

func TestDecisionLog_RecordAndEntries(t *testing.T) {
	var log DecisionLog
	log.Record("BMW logo", "attempt 1", "starting search")
	log.Record("BMW logo", "found", "selected: BMW")

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Action != "found" {
		t.Errorf("expected order preserved, got %+v", entries)
	}

	// Entries returns a copy.
	entries[0].Action = "mutated"
	if log.Entries()[0].Action != "attempt 1" {
		t.Error("Entries must not expose internal storage")
	}
}

func TestDecisionLog_MergeKeepsBlocksContiguous(t *testing.T) {
	sink := &recordingSink{}
	shared := NewDecisionLog(sink)

	var wg sync.WaitGroup
	for q := 0; q < 8; q++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			buf := &DecisionLog{}
			query := fmt.Sprintf("q%d", q)
			for i := 0; i < 5; i++ {
				buf.Record(query, fmt.Sprintf("step %d", i), "")
			}
			shared.Merge(context.Background(), buf)
		}(q)
	}
	wg.Wait()

	entries := shared.Entries()
	if len(entries) != 40 {
		t.Fatalf("expected 40 entries, got %d", len(entries))
	}
	for i := 0; i < len(entries); i += 5 {
		for j := 0; j < 5; j++ {
			e := entries[i+j]
			if e.Query != entries[i].Query {
				t.Fatalf("block at %d interleaved: %+v", i, entries[i:i+5])
			}
			if e.Action != fmt.Sprintf("step %d", j) {
				t.Fatalf("block at %d out of order: %+v", i, entries[i:i+5])
			}
		}
	}
	if len(sink.batches) != 8 {
		t.Errorf("expected 8 sink batches, got %d", len(sink.batches))
	}
}

func TestDecisionLog_MergeEmptyOrSelf(t *testing.T) {
	sink := &recordingSink{}
	log := NewDecisionLog(sink)
	log.Record("q", "a", "r")

	log.Merge(context.Background(), &DecisionLog{})
	log.Merge(context.Background(), nil)
	log.Merge(context.Background(), log)

	if log.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", log.Len())
	}
	if len(sink.batches) != 0 {
		t.Errorf("expected no sink calls, got %d", len(sink.batches))
	}
}

func TestDecisionLog_Summary(t *testing.T) {
	var log DecisionLog
	if log.Summary() != "" {
		t.Error("expected empty summary for empty log")
	}
	log.Record("BMW logo", "gave up", "after 3 attempts")
	if got, want := log.Summary(), "[BMW logo] gave up - after 3 attempts\n"; got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	r.Record("q", "a", "r")
}

func TestExpansionUsage(t *testing.T) {
	ctx, u := NewContextWithUsage(context.Background())
	UsageFromContext(ctx).AddTokens(12)
	UsageFromContext(ctx).AddTokens(8)
	if u.TotalTokens() != 20 || u.Calls() != 2 {
		t.Errorf("unexpected usage: tokens=%d calls=%d", u.TotalTokens(), u.Calls())
	}

	missing := UsageFromContext(context.Background())
	missing.AddTokens(5)
	if missing.TotalTokens() != 0 {
		t.Error("nil usage must stay empty")
	}
}

func TestExpansionUsage_Nested(t *testing.T) {
	ctx, outer := NewContextWithUsage(context.Background())
	inner1Ctx, inner1 := NewContextWithUsage(ctx)
	_, inner2 := NewContextWithUsage(ctx)

	UsageFromContext(inner1Ctx).AddTokens(10)
	inner2.AddTokens(4)

	if inner1.TotalTokens() != 10 || inner2.TotalTokens() != 4 {
		t.Errorf("inner usage leaked: %d/%d", inner1.TotalTokens(), inner2.TotalTokens())
	}
	if outer.TotalTokens() != 14 || outer.Calls() != 2 {
		t.Errorf("outer usage: tokens=%d calls=%d", outer.TotalTokens(), outer.Calls())
	}
}
