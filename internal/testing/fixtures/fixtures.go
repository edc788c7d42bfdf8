// Package fixtures provides test data factories for database tests.
//
// Each factory method creates entities with sensible defaults while allowing
// customization via option functions. Factories go through the repositories,
// so stored documents look exactly like those the API writes.
//
// Usage:
//
//	f := fixtures.New(tdb.DB)
//	user := f.CreateUser(t)
//	tour := f.CreateTour(t)
//	review := f.CreateReview(t, tour, user, 4)
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/repository"
)

// DefaultPassword is the password of every fixture user
const DefaultPassword = "test1234"

// Factory creates test entities in the database
type Factory struct {
	Tours    *repository.TourRepository
	Users    *repository.UserRepository
	Reviews  *repository.ReviewRepository
	Bookings *repository.BookingRepository
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{
		Tours:    repository.NewTourRepository(db),
		Users:    repository.NewUserRepository(db),
		Reviews:  repository.NewReviewRepository(db),
		Bookings: repository.NewBookingRepository(db),
	}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// User Fixtures
// ============================================================================

// UserOpts customizes user creation
type UserOpts struct {
	Name     string
	Email    string
	Password string
	Role     model.UserRole
}

// CreateUser creates an active user with optional customizations
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	o := &UserOpts{
		Name:     "Test User",
		Email:    fmt.Sprintf("user-%s@example.com", randomID()),
		Password: DefaultPassword,
		Role:     model.UserRoleUser,
	}
	for _, opt := range opts {
		opt(o)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("fixtures: hash password: %v", err)
	}
	user, err := f.Users.CreateWithPassword(ctx(t), &model.User{Name: o.Name, Email: o.Email, Role: o.Role}, string(hash))
	if err != nil {
		t.Fatalf("fixtures: create user: %v", err)
	}
	return user
}

// WithRole sets the user's role
func WithRole(role model.UserRole) func(*UserOpts) {
	return func(o *UserOpts) { o.Role = role }
}

// CreateAdmin creates a user with the admin role
func (f *Factory) CreateAdmin(t *testing.T) *model.User {
	t.Helper()
	return f.CreateUser(t, WithRole(model.UserRoleAdmin))
}

// ============================================================================
// Tour Fixtures
// ============================================================================

// TourOpts customizes tour creation
type TourOpts struct {
	Name       string
	Price      float64
	Difficulty string
	Duration   int
	// Start is [lng, lat]; nil means no start location.
	Start      []float64
	StartDates []time.Time
	Secret     bool
	Guides     []string
}

// WithPrice sets the tour price
func WithPrice(price float64) func(*TourOpts) {
	return func(o *TourOpts) { o.Price = price }
}

// WithDifficulty sets the tour difficulty
func WithDifficulty(d string) func(*TourOpts) {
	return func(o *TourOpts) { o.Difficulty = d }
}

// WithStart sets the start location
func WithStart(lat, lng float64) func(*TourOpts) {
	return func(o *TourOpts) { o.Start = []float64{lng, lat} }
}

// WithStartDates sets the start dates
func WithStartDates(dates ...time.Time) func(*TourOpts) {
	return func(o *TourOpts) { o.StartDates = dates }
}

// Secret hides the tour from reads
func Secret() func(*TourOpts) {
	return func(o *TourOpts) { o.Secret = true }
}

// CreateTour creates a valid tour with optional customizations
func (f *Factory) CreateTour(t *testing.T, opts ...func(*TourOpts)) *model.Tour {
	t.Helper()

	o := &TourOpts{
		Name:       "Fixture Tour " + randomID(),
		Price:      497,
		Difficulty: model.DifficultyMedium,
		Duration:   5,
	}
	for _, opt := range opts {
		opt(o)
	}

	body := map[string]interface{}{
		"name":           o.Name,
		"duration":       o.Duration,
		"max_group_size": 10,
		"difficulty":     o.Difficulty,
		"price":          o.Price,
		"summary":        "A tour created by a test",
		"image_cover":    "cover.jpg",
		"secret_tour":    o.Secret,
	}
	if o.Start != nil {
		body["start_location"] = map[string]interface{}{"type": "Point", "coordinates": o.Start}
	}
	if len(o.StartDates) > 0 {
		dates := make([]string, len(o.StartDates))
		for i, d := range o.StartDates {
			dates[i] = d.UTC().Format(time.RFC3339)
		}
		body["start_dates"] = dates
	}
	if len(o.Guides) > 0 {
		body["guides"] = o.Guides
	}

	tour, err := f.Tours.Create(ctx(t), body)
	if err != nil {
		t.Fatalf("fixtures: create tour: %v", err)
	}
	return tour
}

// ============================================================================
// Review and Booking Fixtures
// ============================================================================

// CreateReview stores a review directly, without recomputing tour ratings
func (f *Factory) CreateReview(t *testing.T, tour *model.Tour, user *model.User, rating float64) *model.Review {
	t.Helper()

	review, err := f.Reviews.Create(ctx(t), map[string]interface{}{
		"review": "Fixture review " + randomID(),
		"rating": rating,
		"tour":   tour.ID,
		"user":   user.ID,
	})
	if err != nil {
		t.Fatalf("fixtures: create review: %v", err)
	}
	return review
}

// CreateBooking books tour for user at the tour price
func (f *Factory) CreateBooking(t *testing.T, tour *model.Tour, user *model.User) *model.Booking {
	t.Helper()

	booking, err := f.Bookings.Create(ctx(t), map[string]interface{}{
		"tour":  tour.ID,
		"user":  user.ID,
		"price": tour.Price,
	})
	if err != nil {
		t.Fatalf("fixtures: create booking: %v", err)
	}
	return booking
}
