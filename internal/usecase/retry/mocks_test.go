package retry

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

// --- Fakes ---

type fakeExpander struct {
	mu       sync.Mutex
	requests []string
	contexts []string
	errAt    map[int]error // 1-based call number -> error
}

func (f *fakeExpander) Expand(_ context.Context, request, learningContext string) (domain.SearchDirective, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	f.contexts = append(f.contexts, learningContext)
	if err := f.errAt[len(f.requests)]; err != nil {
		return domain.SearchDirective{}, err
	}
	return domain.NewSearchDirective(fmt.Sprintf("directive %d", len(f.requests)), domain.SizeLarge, domain.TypeAny)
}

func (f *fakeExpander) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeSearcher struct {
	// perAttempt[i] is returned for call i; the last entry repeats.
	perAttempt [][]domain.Candidate
	errAt      map[int]error
	calls      int
	limits     []int
	directives []string
}

func (f *fakeSearcher) Search(
	_ context.Context, d domain.SearchDirective, _ string, limit int,
) ([]domain.Candidate, error) {
	f.calls++
	f.limits = append(f.limits, limit)
	f.directives = append(f.directives, d.Query())
	if err := f.errAt[f.calls]; err != nil {
		return nil, err
	}
	if len(f.perAttempt) == 0 {
		return nil, nil
	}
	i := f.calls - 1
	if i >= len(f.perAttempt) {
		i = len(f.perAttempt) - 1
	}
	return f.perAttempt[i], nil
}

type fakeProber struct {
	mu        sync.Mutex
	reachable map[string]bool
	probed    []string
}

func (f *fakeProber) Probe(_ context.Context, url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, url)
	return f.reachable[url]
}

type staticLearning string

func (s staticLearning) LearningContext(context.Context) string { return string(s) }

func candidate(url string, w, h int) domain.Candidate {
	return domain.NewCandidate("title "+url, url, w, h, "query")
}
