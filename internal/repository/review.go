package repository

import (
	"context"
	"fmt"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
)

// ReviewAuthor populates the author of a review
var ReviewAuthor = query.Populate{Path: "user", Select: []string{"name", "photo"}}

// ReviewSchema describes the review table
var ReviewSchema = Schema{
	Table:        "review",
	Links:        map[string]string{"tour": "tour", "user": "user"},
	Text:         []string{"review"},
	AutoPopulate: []query.Populate{ReviewAuthor},
}

// ReviewRepository handles review data access
type ReviewRepository struct {
	*DocumentStore[model.Review]
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db database.Database) *ReviewRepository {
	return &ReviewRepository{DocumentStore: NewDocumentStore[model.Review](db, ReviewSchema)}
}

// AggregateRatings counts and averages the ratings of a tour's reviews. It
// returns nil when the tour has none.
func (r *ReviewRepository) AggregateRatings(ctx context.Context, tourID string) (*model.RatingStats, error) {
	rid, ok := toRecordID(TourSchema.Table, tourID)
	if !ok {
		return nil, nil
	}

	query := `
		SELECT tour, count() AS n_rating, math::mean(rating) AS avg_rating
		FROM review
		WHERE tour = $tour
		GROUP BY tour
	`
	results, err := r.db.Query(ctx, query, map[string]interface{}{"tour": rid})
	if err != nil {
		return nil, fmt.Errorf("aggregate ratings: %w", err)
	}

	records := extractQueryResults(results)
	if len(records) == 0 || getInt(records[0], "n_rating") == 0 {
		return nil, nil
	}
	return &model.RatingStats{
		Tour:     getString(records[0], "tour"),
		Quantity: getInt(records[0], "n_rating"),
		Average:  getFloat(records[0], "avg_rating"),
	}, nil
}
