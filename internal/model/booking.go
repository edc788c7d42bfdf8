package model

import "time"

// Booking records a user's purchase of a tour
type Booking struct {
	ID        string            `json:"id,omitempty"`
	Tour      Link[TourSummary] `json:"tour"`
	User      Link[UserSummary] `json:"user"`
	Price     float64           `json:"price"`
	Paid      *bool             `json:"paid,omitempty"`
	CreatedOn time.Time         `json:"created_on"`
}

// ApplyDefaults implements Defaulter
func (b *Booking) ApplyDefaults() {
	if b.Paid == nil {
		paid := true
		b.Paid = &paid
	}
}

// Validate implements Validator
func (b *Booking) Validate() []FieldError {
	var errors []FieldError

	if b.Tour.ID == "" {
		errors = append(errors, FieldError{Field: "tour", Message: "Booking must belong to a Tour!"})
	}
	if b.User.ID == "" {
		errors = append(errors, FieldError{Field: "user", Message: "Booking must belong to a User!"})
	}
	if b.Price <= 0 {
		errors = append(errors, FieldError{Field: "price", Message: "Booking must have a price."})
	}

	return errors
}
