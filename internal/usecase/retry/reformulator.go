package retry

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

// Hint returns the corrective hint for a failure reason.
func Hint(reason domain.FailureReason) string {
	switch r := reason.(type) {
	case domain.NoResults:
		return "try alternative keywords or broader terms"
	case domain.AllCandidatesUnavailable:
		return "try different image sources"
	case domain.CandidateTooSmall:
		return fmt.Sprintf("look for higher resolution images (was %dx%d)", r.Width, r.Height)
	default:
		panic(fmt.Sprintf("retry: unhandled failure reason %T", reason))
	}
}

// Instruction builds the natural-language request for a reformulated attempt.
func Instruction(
	original string, previous domain.SearchDirective,
	reason domain.FailureReason, attempt int,
) string {
	return fmt.Sprintf("%s (attempt %d: previous query '%s' failed - %s)",
		original, attempt, previous.Query(), Hint(reason))
}

// Reformulator asks the expander for a new directive informed by the last failure.
type Reformulator struct {
	expander Expander
}

// NewReformulator creates a reformulator.
func NewReformulator(expander Expander) *Reformulator {
	return &Reformulator{expander: expander}
}

// Reformulate returns a new directive for the given attempt. Expansion errors
// are returned unchanged; transient failures were already retried below.
func (r *Reformulator) Reformulate(
	ctx context.Context, original string, previous domain.SearchDirective,
	reason domain.FailureReason, attempt int, learningContext string,
) (domain.SearchDirective, error) {
	return r.expander.Expand(ctx, Instruction(original, previous, reason, attempt), learningContext)
}
