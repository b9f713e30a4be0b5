package retry

import (
	"context"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

// Expander turns free text into a structured search directive.
type Expander interface {
	Expand(ctx context.Context, request, learningContext string) (domain.SearchDirective, error)
}

// Searcher returns ranked candidates for a directive. An empty slice is not an error.
type Searcher interface {
	Search(
		ctx context.Context, directive domain.SearchDirective,
		originalRequest string, limit int,
	) ([]domain.Candidate, error)
}

// Prober checks that a URL is reachable. It never fails; any problem means false.
type Prober interface {
	Probe(ctx context.Context, url string) bool
}

// LearningContextProvider supplies past-feedback hints for the expansion prompt.
type LearningContextProvider interface {
	LearningContext(ctx context.Context) string
}
