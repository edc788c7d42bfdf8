package model

import (
	"strings"
	"time"
)

// Review is a user's rating of a tour. A user reviews a tour at most once.
type Review struct {
	ID        string            `json:"id,omitempty"`
	Review    string            `json:"review"`
	Rating    float64           `json:"rating"`
	CreatedOn time.Time         `json:"created_on"`
	Tour      Link[TourSummary] `json:"tour"`
	User      Link[UserSummary] `json:"user"`
}

// Validate implements Validator
func (r *Review) Validate() []FieldError {
	var errors []FieldError

	if strings.TrimSpace(r.Review) == "" {
		errors = append(errors, FieldError{Field: "review", Message: "Review can not be empty!"})
	}
	if r.Rating < MinRating {
		errors = append(errors, FieldError{Field: "rating", Message: "Rating must be above 1.0"})
	} else if r.Rating > MaxRating {
		errors = append(errors, FieldError{Field: "rating", Message: "Rating must be below 5.0"})
	}
	if r.Tour.ID == "" {
		errors = append(errors, FieldError{Field: "tour", Message: "Review must belong to a tour."})
	}
	if r.User.ID == "" {
		errors = append(errors, FieldError{Field: "user", Message: "Review must belong to a user"})
	}

	return errors
}
