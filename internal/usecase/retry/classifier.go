package retry

import "github.com/kailas-cloud/fetchr/internal/domain"

// Classify picks the single most informative FailureReason for an attempt.
// Returns nil if any verdict was accepted.
//
// Precedence: no candidates -> NoResults; any quality failure -> the first
// CandidateTooSmall; otherwise AllCandidatesUnavailable.
func Classify(candidates []domain.Candidate, verdicts []Verdict) domain.FailureReason {
	if len(candidates) == 0 {
		return domain.NoResults{}
	}

	var firstQuality domain.FailureReason
	for _, v := range verdicts {
		if v.Accepted() {
			return nil
		}
		if v.Status == StatusTooSmall && firstQuality == nil {
			firstQuality = v.Failure
		}
	}

	if firstQuality != nil {
		return firstQuality
	}
	return domain.AllCandidatesUnavailable{}
}
