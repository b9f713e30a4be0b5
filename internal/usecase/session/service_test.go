package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/fetchr/internal/domain"
	"github.com/kailas-cloud/fetchr/internal/usecase/retry"
)

// --- Mocks ---

type mockFinder struct {
	running  atomic.Int32
	peak     atomic.Int32
	failures map[string]error
	misses   map[string]bool
}

func (m *mockFinder) FindWithRetry(
	_ context.Context, request string, maxRetries int, log domain.Recorder, verbose bool,
) (*retry.Match, error) {
	n := m.running.Add(1)
	defer m.running.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	for i := 1; i <= maxRetries; i++ {
		if verbose {
			log.Record(request, fmt.Sprintf("attempt %d", i), "starting search")
		}
		time.Sleep(time.Millisecond)
	}
	if err := m.failures[request]; err != nil {
		return nil, err
	}
	if m.misses[request] {
		return nil, nil
	}
	d, _ := domain.NewSearchDirective(request+" hi-res", domain.SizeLarge, domain.TypeAny)
	return &retry.Match{
		Candidate: domain.NewCandidate(request+" image", "https://img/"+request, 100, 100, request),
		Directive: d,
		Attempts:  1,
	}, nil
}

type mockSink struct {
	mu      sync.Mutex
	batches [][]domain.Decision
}

func (m *mockSink) AppendDecisions(_ context.Context, batch []domain.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
}

// --- Tests ---

func TestRun_ResultsInRequestOrder(t *testing.T) {
	f := &mockFinder{
		failures: map[string]error{"broken": domain.ErrConfiguration},
		misses:   map[string]bool{"rare": true},
	}
	svc := New(f, nil)

	rep, err := svc.Run(context.Background(), Request{
		Queries:    []string{"cat", " broken ", "rare", "dog"},
		MaxRetries: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.ID == "" {
		t.Error("expected a session id")
	}

	want := []Status{StatusFound, StatusFailed, StatusExhausted, StatusFound}
	for i, r := range rep.Results {
		if r.Status != want[i] {
			t.Errorf("result %d (%s): status %s, want %s", i, r.Query, r.Status, want[i])
		}
	}
	if rep.Results[1].Query != "broken" {
		t.Errorf("expected trimmed query, got %q", rep.Results[1].Query)
	}
	if !errors.Is(rep.Results[1].Err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", rep.Results[1].Err)
	}
	if got := rep.Results[2].Message(); got != "no result after 3 attempts" {
		t.Errorf("unexpected exhausted message: %q", got)
	}
	if got := rep.Results[1].Message(); !strings.HasPrefix(got, "could not complete: ") {
		t.Errorf("unexpected failure message: %q", got)
	}
	if got := rep.Results[0].Message(); got != "found: cat image" {
		t.Errorf("unexpected found message: %q", got)
	}
}

func TestRun_PerQueryEntriesAreContiguous(t *testing.T) {
	f := &mockFinder{}
	sink := &mockSink{}
	svc := New(f, nil).WithConcurrency(8).WithSinks(func(string) domain.DecisionSink { return sink })

	queries := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	rep, err := svc.Run(context.Background(), Request{Queries: queries, MaxRetries: 5, Verbose: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := rep.Log.Entries()
	if len(entries) != len(queries)*5 {
		t.Fatalf("expected %d entries, got %d", len(queries)*5, len(entries))
	}
	for i := 0; i < len(entries); i += 5 {
		q := entries[i].Query
		for j := 0; j < 5; j++ {
			e := entries[i+j]
			if e.Query != q {
				t.Fatalf("entries of %q interleaved with %q at %d", q, e.Query, i+j)
			}
			if e.Action != fmt.Sprintf("attempt %d", j+1) {
				t.Errorf("entry %d out of attempt order: %s", i+j, e.Action)
			}
		}
	}
	if len(sink.batches) != len(queries) {
		t.Errorf("expected one sink batch per query, got %d", len(sink.batches))
	}
}

func TestRun_RespectsConcurrency(t *testing.T) {
	f := &mockFinder{}
	svc := New(f, nil).WithConcurrency(2)

	_, err := svc.Run(context.Background(), Request{
		Queries:    []string{"a", "b", "c", "d", "e", "f"},
		MaxRetries: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := f.peak.Load(); p > 2 {
		t.Errorf("expected at most 2 concurrent queries, saw %d", p)
	}
}

func TestRun_NotVerboseLeavesLogEmpty(t *testing.T) {
	rep, err := New(&mockFinder{}, nil).Run(context.Background(), Request{Queries: []string{"a"}, MaxRetries: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Log.Len() != 0 {
		t.Errorf("expected empty log, got %d", rep.Log.Len())
	}
}

func TestRun_Validation(t *testing.T) {
	svc := New(&mockFinder{}, nil).WithMaxQueries(2)

	tests := []struct {
		name string
		req  Request
	}{
		{"no queries", Request{MaxRetries: 3}},
		{"too many", Request{Queries: []string{"a", "b", "c"}, MaxRetries: 3}},
		{"blank query", Request{Queries: []string{"a", "  "}, MaxRetries: 3}},
		{"zero retries", Request{Queries: []string{"a"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Run(context.Background(), tc.req)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}
