package session

import (
	"fmt"

	"github.com/kailas-cloud/fetchr/internal/usecase/retry"
)

// Status is the outcome of one query in a session.
type Status string

// Query outcomes.
const (
	StatusFound     Status = "found"
	StatusExhausted Status = "exhausted"
	StatusFailed    Status = "failed"
)

// Result is the per-query outcome, in request order.
type Result struct {
	Query    string
	Status   Status
	Match    *retry.Match
	Attempts int
	Err      error
}

func newFound(query string, m *retry.Match) Result {
	return Result{Query: query, Status: StatusFound, Match: m, Attempts: m.Attempts}
}

func newExhausted(query string, attempts int) Result {
	return Result{Query: query, Status: StatusExhausted, Attempts: attempts}
}

func newFailed(query string, err error) Result {
	return Result{Query: query, Status: StatusFailed, Err: err}
}

// Message renders the user-facing outcome line.
func (r Result) Message() string {
	switch r.Status {
	case StatusFound:
		return "found: " + r.Match.Candidate.Title
	case StatusExhausted:
		return fmt.Sprintf("no result after %d attempts", r.Attempts)
	default:
		return fmt.Sprintf("could not complete: %v", r.Err)
	}
}
