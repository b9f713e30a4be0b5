package retry

import (
	"testing"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

func TestClassify_NoResults(t *testing.T) {
	if _, ok := Classify(nil, nil).(domain.NoResults); !ok {
		t.Error("expected NoResults for an empty candidate list")
	}
}

func TestClassify_AcceptedReturnsNil(t *testing.T) {
	c := candidate("a", 100, 100)
	verdicts := []Verdict{
		{Candidate: candidate("b", 0, 0), Status: StatusUnavailable},
		{Candidate: c, Status: StatusAccepted},
	}
	if got := Classify([]domain.Candidate{c}, verdicts); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestClassify_QualityBeatsUnavailable(t *testing.T) {
	cands := []domain.Candidate{candidate("a", 0, 0), candidate("b", 16, 16), candidate("c", 20, 20)}
	verdicts := []Verdict{
		{Candidate: cands[0], Status: StatusUnavailable},
		{Candidate: cands[1], Status: StatusTooSmall, Failure: domain.CandidateTooSmall{Width: 16, Height: 16}},
		{Candidate: cands[2], Status: StatusTooSmall, Failure: domain.CandidateTooSmall{Width: 20, Height: 20}},
	}
	got, ok := Classify(cands, verdicts).(domain.CandidateTooSmall)
	if !ok {
		t.Fatalf("expected CandidateTooSmall, got %v", got)
	}
	if got.Width != 16 || got.Height != 16 {
		t.Errorf("expected the first quality failure (16x16), got %dx%d", got.Width, got.Height)
	}
}

func TestClassify_AllUnavailable(t *testing.T) {
	cands := []domain.Candidate{candidate("a", 0, 0), candidate("b", 300, 300)}
	verdicts := []Verdict{
		{Candidate: cands[0], Status: StatusUnavailable},
		{Candidate: cands[1], Status: StatusUnavailable},
	}
	if _, ok := Classify(cands, verdicts).(domain.AllCandidatesUnavailable); !ok {
		t.Error("expected AllCandidatesUnavailable")
	}
}
