package domain

import "fmt"

// FailureKind is a low-cardinality label for a FailureReason variant.
type FailureKind string

// Failure kinds.
const (
	KindNoResults                FailureKind = "no_results"
	KindAllCandidatesUnavailable FailureKind = "all_candidates_unavailable"
	KindCandidateTooSmall        FailureKind = "candidate_too_small"
)

// FailureReason explains why an attempt produced no acceptable candidate.
// The set of variants is closed: only this package can implement it.
type FailureReason interface {
	Kind() FailureKind
	String() string
	failureReason()
}

// NoResults means the search returned nothing.
type NoResults struct{}

// AllCandidatesUnavailable means every probed candidate was unreachable.
type AllCandidatesUnavailable struct{}

// CandidateTooSmall means a candidate failed the minimum-dimension gate.
type CandidateTooSmall struct {
	Width  int
	Height int
}

func (NoResults) failureReason()                {}
func (AllCandidatesUnavailable) failureReason() {}
func (CandidateTooSmall) failureReason()        {}

// Kind implements FailureReason.
func (NoResults) Kind() FailureKind { return KindNoResults }

// Kind implements FailureReason.
func (AllCandidatesUnavailable) Kind() FailureKind { return KindAllCandidatesUnavailable }

// Kind implements FailureReason.
func (CandidateTooSmall) Kind() FailureKind { return KindCandidateTooSmall }

func (NoResults) String() string                { return "no results" }
func (AllCandidatesUnavailable) String() string { return "all candidates unavailable" }

func (r CandidateTooSmall) String() string {
	return fmt.Sprintf("image too small: %dx%d", r.Width, r.Height)
}
