package fetchr

import (
	"github.com/kailas-cloud/fetchr/internal/domain"
	"github.com/kailas-cloud/fetchr/internal/usecase/session"
)

// Image is an accepted search result.
type Image struct {
	ID     string
	Title  string
	URL    string
	Width  int // 0 when the provider did not report it
	Height int
}

// Directive is the structured search that found an image.
type Directive struct {
	Query     string
	ImageSize string // "" when unfiltered
	ImageType string
}

// Decision is one entry of the decision log.
type Decision struct {
	Query  string
	Action string
	Reason string
}

// Result is the outcome of one query.
type Result struct {
	Query     string
	Found     bool
	Image     *Image
	Directive *Directive
	Attempts  int
	Message   string
	Decisions []Decision // filled by Find only
	Err       error      // set when the query could not complete
}

// Session is the outcome of FindAll.
type Session struct {
	ID        string
	Results   []Result
	Decisions []Decision // empty unless verbose
	Log       string     // one "[query] action - reason" line per decision
}

// Rating is a verdict on a delivered image.
type Rating = domain.Rating

// Ratings.
const (
	RatingUp   = domain.RatingUp
	RatingDown = domain.RatingDown
	RatingSkip = domain.RatingSkip
)

// Feedback is one rated result.
type Feedback struct {
	OriginalQuery string
	Directive     Directive
	ImageURL      string
	ImageTitle    string
	Rating        Rating
}

// FeedbackStats counts recorded ratings.
type FeedbackStats struct {
	Up      int
	Down    int
	Skipped int
}

func resultFromSession(r session.Result) Result {
	out := Result{
		Query:    r.Query,
		Attempts: r.Attempts,
		Message:  r.Message(),
		Err:      r.Err,
	}
	if r.Status != session.StatusFound || r.Match == nil {
		return out
	}
	c := r.Match.Candidate
	d := r.Match.Directive
	out.Found = true
	out.Image = &Image{ID: c.ID, Title: c.Title, URL: c.URL, Width: c.Width, Height: c.Height}
	out.Directive = &Directive{Query: d.Query(), ImageSize: string(d.ImageSize()), ImageType: string(d.ImageType())}
	return out
}

func decisionsFromDomain(entries []domain.Decision) []Decision {
	out := make([]Decision, len(entries))
	for i, d := range entries {
		out[i] = Decision{Query: d.Query, Action: d.Action, Reason: d.Reason}
	}
	return out
}

func feedbackToDomain(f Feedback) domain.FeedbackEntry {
	return domain.FeedbackEntry{
		OriginalQuery: f.OriginalQuery,
		ExpandedQuery: f.Directive.Query,
		Filters: domain.FeedbackFilters{
			ImageSize: f.Directive.ImageSize,
			ImageType: f.Directive.ImageType,
		},
		ImageURL:   f.ImageURL,
		ImageTitle: f.ImageTitle,
		Rating:     f.Rating,
	}
}
