package retry

import (
	"context"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

// DefaultMinDimension is the smallest acceptable known width or height, in pixels.
const DefaultMinDimension = 32

// VerdictStatus is the validation outcome for one candidate.
type VerdictStatus string

// Verdict statuses.
const (
	StatusAccepted    VerdictStatus = "accepted"
	StatusTooSmall    VerdictStatus = "too_small"
	StatusUnavailable VerdictStatus = "unavailable"
)

// Verdict is the result of validating one candidate.
type Verdict struct {
	Candidate domain.Candidate
	Status    VerdictStatus
	// Failure is set for quality rejections only.
	Failure domain.FailureReason
}

// Accepted reports whether the candidate passed both gates.
func (v Verdict) Accepted() bool { return v.Status == StatusAccepted }

// Validator applies the quality gate and then the availability gate.
type Validator struct {
	prober       Prober
	minDimension int
}

// NewValidator creates a validator. minDimension <= 0 uses DefaultMinDimension.
func NewValidator(prober Prober, minDimension int) *Validator {
	if minDimension <= 0 {
		minDimension = DefaultMinDimension
	}
	return &Validator{prober: prober, minDimension: minDimension}
}

// CheckQuality returns CandidateTooSmall when both dimensions are known and
// either is below the minimum. Unknown dimensions pass.
func (v *Validator) CheckQuality(c domain.Candidate) domain.FailureReason {
	if !c.HasKnownDimensions() {
		return nil
	}
	if c.Width < v.minDimension || c.Height < v.minDimension {
		return domain.CandidateTooSmall{Width: c.Width, Height: c.Height}
	}
	return nil
}

// Validate runs both gates. A quality failure skips the probe.
func (v *Validator) Validate(ctx context.Context, c domain.Candidate) Verdict {
	if failure := v.CheckQuality(c); failure != nil {
		return Verdict{Candidate: c, Status: StatusTooSmall, Failure: failure}
	}
	if !v.prober.Probe(ctx, c.URL) {
		return Verdict{Candidate: c, Status: StatusUnavailable}
	}
	return Verdict{Candidate: c, Status: StatusAccepted}
}
