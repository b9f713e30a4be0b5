package domain

import (
	"fmt"
	"strings"
	"time"
)

// Rating is a user's verdict on a delivered image.
type Rating string

// Ratings.
const (
	RatingUp   Rating = "thumbs_up"
	RatingDown Rating = "thumbs_down"
	RatingSkip Rating = "skip"
)

// IsValid checks if the rating is one of the supported values.
func (r Rating) IsValid() bool {
	return r == RatingUp || r == RatingDown || r == RatingSkip
}

// FeedbackFilters are the search filters that produced a rated image.
type FeedbackFilters struct {
	ImageSize string `json:"img_size,omitempty"`
	ImageType string `json:"img_type,omitempty"`
}

// FeedbackEntry is one rated result.
type FeedbackEntry struct {
	Timestamp     time.Time       `json:"timestamp"`
	OriginalQuery string          `json:"original_query"`
	ExpandedQuery string          `json:"expanded_query"`
	Filters       FeedbackFilters `json:"filters"`
	ImageURL      string          `json:"image_url"`
	ImageTitle    string          `json:"image_title"`
	Rating        Rating          `json:"rating"`
}

// Validate checks required fields.
func (e FeedbackEntry) Validate() error {
	if strings.TrimSpace(e.OriginalQuery) == "" {
		return fmt.Errorf("%w: original_query is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(e.ExpandedQuery) == "" {
		return fmt.Errorf("%w: expanded_query is required", ErrInvalidArgument)
	}
	if !e.Rating.IsValid() {
		return fmt.Errorf("%w: unknown rating %q", ErrInvalidArgument, e.Rating)
	}
	return nil
}

// FeedbackStats counts entries by rating.
type FeedbackStats struct {
	Up      int `json:"thumbs_up"`
	Down    int `json:"thumbs_down"`
	Skipped int `json:"skipped"`
}
