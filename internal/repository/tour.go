package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
)

// TourSchema describes the tour table. Secret tours are hidden from reads.
var TourSchema = Schema{
	Table:     "tour",
	Links:     map[string]string{"guides": "user"},
	Datetimes: []string{"start_dates"},
	Text:      []string{"name", "slug", "summary", "description", "difficulty", "image_cover"},
	ReadOnly:  []string{"ratings_average", "ratings_quantity", "slug"},
	Virtual:   []string{"duration_weeks", "reviews"},
	Derived:   []string{"slug"},
	AutoPopulate: []query.Populate{
		{Path: "guides", Select: []string{"name", "email", "photo", "role"}},
	},
	Scope: []query.Condition{query.Ne("secret_tour", true)},
}

// TourReviews populates a tour's reviews with their authors
var TourReviews = query.Populate{
	Path:         "reviews",
	From:         "review",
	ForeignField: "tour",
	Populate:     []query.Populate{ReviewAuthor},
}

// TourRepository handles tour data access
type TourRepository struct {
	*DocumentStore[model.Tour]
}

// NewTourRepository creates a new tour repository
func NewTourRepository(db database.Database) *TourRepository {
	return &TourRepository{DocumentStore: NewDocumentStore[model.Tour](db, TourSchema)}
}

// UpdateRatings writes the aggregate review statistics of a tour. A tour
// that no longer exists is left alone.
func (r *TourRepository) UpdateRatings(ctx context.Context, tourID string, quantity int, average float64) error {
	rid, ok := r.schema.recordID(tourID)
	if !ok {
		return nil
	}

	query := `
		UPDATE $id SET
			ratings_quantity = $quantity,
			ratings_average = $average,
			version = (version ?? 0) + 1
		WHERE version != NONE
	`
	vars := map[string]interface{}{
		"id":       rid,
		"quantity": quantity,
		"average":  average,
	}
	if err := r.db.Execute(ctx, query, vars); err != nil {
		return fmt.Errorf("update tour ratings: %w", err)
	}
	return nil
}

// ListIDs returns the id of every tour
func (r *TourRepository) ListIDs(ctx context.Context) ([]string, error) {
	results, err := r.db.Query(ctx, "SELECT id FROM tour", nil)
	if err != nil {
		return nil, fmt.Errorf("list tour ids: %w", err)
	}

	records := extractQueryResults(results)
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, getString(rec, fieldID))
	}
	return ids, nil
}

// Stats aggregates public tours rated at least minRating, per difficulty,
// cheapest average first.
func (r *TourRepository) Stats(ctx context.Context, minRating float64) ([]model.TourStats, error) {
	query := `
		SELECT
			difficulty,
			count() AS num_tours,
			math::sum(ratings_quantity) AS num_ratings,
			math::mean(ratings_average) AS avg_rating,
			math::mean(price) AS avg_price,
			math::min(price) AS min_price,
			math::max(price) AS max_price
		FROM tour
		WHERE ratings_average >= $min_rating AND secret_tour != true
		GROUP BY difficulty
	`
	results, err := r.db.Query(ctx, query, map[string]interface{}{"min_rating": minRating})
	if err != nil {
		return nil, fmt.Errorf("tour stats: %w", err)
	}

	records := extractQueryResults(results)
	stats := make([]model.TourStats, 0, len(records))
	for _, rec := range records {
		stats = append(stats, model.TourStats{
			Difficulty: strings.ToUpper(getString(rec, "difficulty")),
			NumTours:   getInt(rec, "num_tours"),
			NumRatings: getInt(rec, "num_ratings"),
			AvgRating:  getFloat(rec, "avg_rating"),
			AvgPrice:   getFloat(rec, "avg_price"),
			MinPrice:   getFloat(rec, "min_price"),
			MaxPrice:   getFloat(rec, "max_price"),
		})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].AvgPrice < stats[j].AvgPrice })
	return stats, nil
}

// FindSchedules returns the name and start dates of every public tour
func (r *TourRepository) FindSchedules(ctx context.Context) ([]*model.Tour, error) {
	return r.Find(ctx, query.Query{Fields: []string{fieldID, "name", "start_dates"}})
}

// FindStartsInBox returns public tours whose start location falls inside
// the box. Coordinates are stored longitude first.
func (r *TourRepository) FindStartsInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]*model.Tour, error) {
	query := `
		SELECT * OMIT version FROM tour
		WHERE secret_tour != true
			AND start_location.coordinates[1] >= $min_lat
			AND start_location.coordinates[1] <= $max_lat
			AND start_location.coordinates[0] >= $min_lng
			AND start_location.coordinates[0] <= $max_lng
	`
	return r.findStatement(ctx, query, map[string]interface{}{
		"min_lat": minLat,
		"max_lat": maxLat,
		"min_lng": minLng,
		"max_lng": maxLng,
	})
}

// FindStartLocations returns the id, name and start location of every
// public tour
func (r *TourRepository) FindStartLocations(ctx context.Context) ([]*model.Tour, error) {
	return r.Find(ctx, query.Query{Fields: []string{fieldID, "name", "start_location"}})
}
