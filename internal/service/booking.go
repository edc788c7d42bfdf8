package service

import (
	"context"

	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
)

// BookingStore lists the tours a user booked
type BookingStore interface {
	FindTourIDsByUser(ctx context.Context, userID string) ([]string, error)
}

// TourFinder loads tours by query
type TourFinder interface {
	Find(ctx context.Context, q query.Query) ([]*model.Tour, error)
}

// BookingService handles the caller's own bookings
type BookingService struct {
	bookings BookingStore
	tours    TourFinder
}

// NewBookingService creates a new booking service
func NewBookingService(bookings BookingStore, tours TourFinder) *BookingService {
	return &BookingService{bookings: bookings, tours: tours}
}

// MyTours returns the tours the user has booked
func (s *BookingService) MyTours(ctx context.Context, userID string) ([]*model.Tour, error) {
	ids, err := s.bookings.FindTourIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Tour{}, nil
	}

	in := make([]interface{}, len(ids))
	for i, id := range ids {
		in[i] = id
	}
	return s.tours.Find(ctx, query.Query{
		Conditions: []query.Condition{{Field: query.IDField, Op: query.OpIn, Value: in}},
		Omit:       []string{query.VersionField},
	})
}
