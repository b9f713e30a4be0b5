package domain

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Candidate is one unvalidated search result.
type Candidate struct {
	ID          string
	Title       string
	URL         string
	Width       int
	Height      int
	SourceQuery string
}

// NewCandidate builds a candidate whose ID is a stable hash of its URL.
// Width and height of 0 mean the provider did not report them.
func NewCandidate(title, url string, width, height int, sourceQuery string) Candidate {
	return Candidate{
		ID:          CandidateID(url),
		Title:       title,
		URL:         url,
		Width:       width,
		Height:      height,
		SourceQuery: sourceQuery,
	}
}

// CandidateID hashes a retrieval URL into a short hex identifier.
func CandidateID(url string) string {
	return strconv.FormatUint(xxhash.Sum64String(url), 16)
}

// HasKnownDimensions reports whether both dimensions were reported.
func (c Candidate) HasKnownDimensions() bool {
	return c.Width > 0 && c.Height > 0
}

// Dimensions renders "WxH", or "unknown" when not reported.
func (c Candidate) Dimensions() string {
	if !c.HasKnownDimensions() {
		return "unknown"
	}
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}
