package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/forgo/trailhead/api/internal/metrics"
	"github.com/forgo/trailhead/api/internal/model"
)

// ReviewStatsStore aggregates review ratings per tour
type ReviewStatsStore interface {
	AggregateRatings(ctx context.Context, tourID string) (*model.RatingStats, error)
}

// TourRatingsStore writes a tour's aggregate ratings
type TourRatingsStore interface {
	UpdateRatings(ctx context.Context, tourID string, quantity int, average float64) error
}

// RatingAggregator keeps ratings_quantity and ratings_average of a tour in
// line with its reviews.
type RatingAggregator struct {
	reviews ReviewStatsStore
	tours   TourRatingsStore
}

// NewRatingAggregator creates a new rating aggregator
func NewRatingAggregator(reviews ReviewStatsStore, tours TourRatingsStore) *RatingAggregator {
	return &RatingAggregator{reviews: reviews, tours: tours}
}

// CalcAverageRatings recomputes the statistics of one tour from scratch.
// A tour without reviews gets zero ratings and the default average.
func (a *RatingAggregator) CalcAverageRatings(ctx context.Context, tourID string) error {
	if tourID == "" {
		return nil
	}

	stats, err := a.reviews.AggregateRatings(ctx, tourID)
	if err != nil {
		metrics.RecordRatingRecompute(false)
		return fmt.Errorf("aggregate ratings of %s: %w", tourID, err)
	}

	quantity, average := 0, model.DefaultRatingsAverage
	if stats != nil && stats.Quantity > 0 {
		quantity = stats.Quantity
		average = roundRating(stats.Average)
	}

	if err := a.tours.UpdateRatings(ctx, tourID, quantity, average); err != nil {
		metrics.RecordRatingRecompute(false)
		return fmt.Errorf("store ratings of %s: %w", tourID, err)
	}

	metrics.RecordRatingRecompute(true)
	slog.Debug("recomputed tour ratings",
		slog.String("tour_id", tourID),
		slog.Int("quantity", quantity),
		slog.Float64("average", average))
	return nil
}

// roundRating rounds to one decimal: 4.666 becomes 4.7.
func roundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
