package model

import (
	"fmt"
	"math"
	"time"
)

// Difficulty levels
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// Tour field limits
const (
	MinTourNameLength = 10
	MaxTourNameLength = 40
	MinRating         = 1.0
	MaxRating         = 5.0
	// DefaultRatingsAverage is reported for tours without reviews.
	DefaultRatingsAverage = 4.5
)

// Tour is a bookable guided tour
type Tour struct {
	ID              string              `json:"id,omitempty"`
	Name            string              `json:"name"`
	Slug            string              `json:"slug,omitempty"`
	Duration        int                 `json:"duration"`
	MaxGroupSize    int                 `json:"max_group_size"`
	Difficulty      string              `json:"difficulty"`
	RatingsAverage  float64             `json:"ratings_average"`
	RatingsQuantity int                 `json:"ratings_quantity"`
	Price           float64             `json:"price"`
	PriceDiscount   *float64            `json:"price_discount,omitempty"`
	Summary         string              `json:"summary"`
	Description     string              `json:"description,omitempty"`
	ImageCover      string              `json:"image_cover"`
	Images          []string            `json:"images,omitempty"`
	StartDates      []time.Time         `json:"start_dates,omitempty"`
	SecretTour      bool                `json:"secret_tour"`
	StartLocation   *Location           `json:"start_location,omitempty"`
	Locations       []Location          `json:"locations,omitempty"`
	Guides          []Link[UserSummary] `json:"guides,omitempty"`
	CreatedOn       time.Time           `json:"created_on"`

	// Computed on read, never stored.
	DurationWeeks float64  `json:"duration_weeks,omitempty"`
	Reviews       []Review `json:"reviews,omitempty"`
}

// Location is a GeoJSON point with a description. Coordinates are
// longitude first, then latitude.
type Location struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	Day         int       `json:"day,omitempty"`
}

// Lng returns the longitude, or zero for a malformed point.
func (l *Location) Lng() float64 {
	if l == nil || len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[0]
}

// Lat returns the latitude, or zero for a malformed point.
func (l *Location) Lat() float64 {
	if l == nil || len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[1]
}

// TourSummary is the populated form of a link to a tour.
type TourSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Slug       string  `json:"slug,omitempty"`
	ImageCover string  `json:"image_cover,omitempty"`
	Price      float64 `json:"price,omitempty"`
}

// ApplyDefaults implements Defaulter
func (t *Tour) ApplyDefaults() {
	if t.RatingsAverage == 0 {
		t.RatingsAverage = DefaultRatingsAverage
	}
	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
	}
}

// BeforeSave implements Preparer
func (t *Tour) BeforeSave() {
	t.Slug = Slugify(t.Name)
}

// AfterLoad implements Loader
func (t *Tour) AfterLoad() {
	if t.Duration > 0 {
		t.DurationWeeks = math.Round(float64(t.Duration)/7*100) / 100
	}
}

// Validate implements Validator
func (t *Tour) Validate() []FieldError {
	var errors []FieldError

	switch {
	case t.Name == "":
		errors = append(errors, FieldError{Field: "name", Message: "A tour must have a name"})
	case len([]rune(t.Name)) > MaxTourNameLength:
		errors = append(errors, FieldError{Field: "name", Message: "A tour name must have less or equal then 40 characters"})
	case len([]rune(t.Name)) < MinTourNameLength:
		errors = append(errors, FieldError{Field: "name", Message: "A tour name must have more or equal then 10 characters"})
	}
	if t.Duration <= 0 {
		errors = append(errors, FieldError{Field: "duration", Message: "A tour must have a duration"})
	}
	if t.MaxGroupSize <= 0 {
		errors = append(errors, FieldError{Field: "max_group_size", Message: "A tour must have a group size"})
	}
	if t.Difficulty == "" {
		errors = append(errors, FieldError{Field: "difficulty", Message: "A tour must have a difficulty"})
	} else if t.Difficulty != DifficultyEasy && t.Difficulty != DifficultyMedium && t.Difficulty != DifficultyDifficult {
		errors = append(errors, FieldError{Field: "difficulty", Message: "Difficulty is either: easy, medium, difficult"})
	}
	if t.RatingsAverage < MinRating {
		errors = append(errors, FieldError{Field: "ratings_average", Message: "Rating must be above 1.0"})
	} else if t.RatingsAverage > MaxRating {
		errors = append(errors, FieldError{Field: "ratings_average", Message: "Rating must be below 5.0"})
	}
	if t.Price <= 0 {
		errors = append(errors, FieldError{Field: "price", Message: "A tour must have a price"})
	}
	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		errors = append(errors, FieldError{
			Field:   "price_discount",
			Message: fmt.Sprintf("Discount price (%g) should be below regular price", *t.PriceDiscount),
		})
	}
	if t.Summary == "" {
		errors = append(errors, FieldError{Field: "summary", Message: "A tour must have a summary"})
	}
	if t.ImageCover == "" {
		errors = append(errors, FieldError{Field: "image_cover", Message: "A tour must have a cover image"})
	}
	if t.StartLocation != nil && len(t.StartLocation.Coordinates) != 2 {
		errors = append(errors, FieldError{Field: "start_location", Message: "A location needs [longitude, latitude] coordinates"})
	}

	return errors
}

// TourStats aggregates well-rated tours per difficulty.
type TourStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"num_tours"`
	NumRatings int     `json:"num_ratings"`
	AvgRating  float64 `json:"avg_rating"`
	AvgPrice   float64 `json:"avg_price"`
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
}

// MonthlyPlan counts tour starts in one month of a year.
type MonthlyPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"num_tour_starts"`
	Tours         []string `json:"tours"`
}

// TourDistance is the distance from a reference point to a tour's start.
type TourDistance struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// RatingStats is a fresh aggregation over one tour's reviews.
type RatingStats struct {
	Tour     string
	Quantity int
	Average  float64
}
