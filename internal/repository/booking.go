package repository

import (
	"context"
	"fmt"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
)

// BookingSchema describes the booking table
var BookingSchema = Schema{
	Table: "booking",
	Links: map[string]string{"tour": "tour", "user": "user"},
	AutoPopulate: []query.Populate{
		{Path: "user", Select: []string{"name", "email"}},
		{Path: "tour", Select: []string{"name"}},
	},
}

// BookingRepository handles booking data access
type BookingRepository struct {
	*DocumentStore[model.Booking]
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db database.Database) *BookingRepository {
	return &BookingRepository{DocumentStore: NewDocumentStore[model.Booking](db, BookingSchema)}
}

// FindTourIDsByUser returns the distinct tours a user has booked
func (r *BookingRepository) FindTourIDsByUser(ctx context.Context, userID string) ([]string, error) {
	rid, ok := toRecordID(UserSchema.Table, userID)
	if !ok {
		return nil, nil
	}

	results, err := r.db.Query(ctx, "SELECT tour FROM booking WHERE user = $user", map[string]interface{}{"user": rid})
	if err != nil {
		return nil, fmt.Errorf("find bookings: %w", err)
	}

	var ids []string
	seen := map[string]bool{}
	for _, rec := range extractQueryResults(results) {
		id := getString(rec, "tour")
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
