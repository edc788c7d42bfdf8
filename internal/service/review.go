package service

import (
	"context"
	"errors"

	"github.com/forgo/trailhead/api/internal/model"
)

// ReviewModel wraps the review store so that every write recomputes the
// ratings of the affected tours once it has completed.
type ReviewModel struct {
	Model[model.Review]
	ratings *RatingAggregator
}

// NewReviewModel creates a new review model
func NewReviewModel(inner Model[model.Review], ratings *RatingAggregator) *ReviewModel {
	return &ReviewModel{Model: inner, ratings: ratings}
}

// Create stores the review, then recomputes its tour
func (m *ReviewModel) Create(ctx context.Context, body map[string]interface{}) (*model.Review, error) {
	review, err := m.Model.Create(ctx, body)
	if err != nil {
		return nil, err
	}
	if err := m.ratings.CalcAverageRatings(ctx, review.Tour.ID); err != nil {
		return nil, err
	}
	return review, nil
}

// FindByIDAndUpdate captures the review's tour, applies the update, then
// recomputes that tour and the new one if the review moved.
func (m *ReviewModel) FindByIDAndUpdate(ctx context.Context, id string, body map[string]interface{}) (*model.Review, error) {
	before, err := m.Model.FindByID(ctx, id)
	if err != nil || before == nil {
		return nil, err
	}

	review, err := m.Model.FindByIDAndUpdate(ctx, id, body)
	if err != nil || review == nil {
		return review, err
	}

	errs := []error{m.ratings.CalcAverageRatings(ctx, before.Tour.ID)}
	if review.Tour.ID != before.Tour.ID {
		errs = append(errs, m.ratings.CalcAverageRatings(ctx, review.Tour.ID))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return review, nil
}

// FindByIDAndDelete removes the review, then recomputes the tour it
// belonged to.
func (m *ReviewModel) FindByIDAndDelete(ctx context.Context, id string) (*model.Review, error) {
	review, err := m.Model.FindByIDAndDelete(ctx, id)
	if err != nil || review == nil {
		return review, err
	}
	if err := m.ratings.CalcAverageRatings(ctx, review.Tour.ID); err != nil {
		return nil, err
	}
	return review, nil
}
