package budget

import (
	"context"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

// Expander turns a request into a search directive.
type Expander interface {
	Expand(ctx context.Context, request, learningContext string) (domain.SearchDirective, error)
}

// UsageReader returns tokens already spent today, used to seed the tracker.
type UsageReader interface {
	Today(ctx context.Context) (int64, error)
}
