package handler

import (
	"net/http"

	"github.com/forgo/trailhead/api/internal/middleware"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
	"github.com/forgo/trailhead/api/internal/service"
)

// NewReviewHandler creates the review endpoints. They serve both
// /api/v1/reviews and the nested /api/v1/tours/{tourId}/reviews.
func NewReviewHandler(resource *service.Resource[model.Review]) *ResourceHandler[model.Review] {
	return NewResourceHandler(ResourceHandlerConfig[model.Review]{
		Resource:  resource,
		Scope:     tourScope,
		OnCreate:  setTourUserIDs,
		OnUpdate:  keepReviewAuthor,
		Authorize: ownReviewsOnly,
	})
}

// tourScope limits a nested listing to the tour in the path.
func tourScope(r *http.Request) []query.Condition {
	if tourID := r.PathValue("tourId"); tourID != "" {
		return []query.Condition{query.Eq("tour", tourID)}
	}
	return nil
}

// setTourUserIDs fills the tour from a nested route and always attributes
// the review to the caller.
func setTourUserIDs(r *http.Request, body map[string]interface{}) {
	if tourID := r.PathValue("tourId"); tourID != "" {
		if _, ok := body["tour"]; !ok {
			body["tour"] = tourID
		}
	}
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		body["user"] = userID
	}
}

func keepReviewAuthor(r *http.Request, body map[string]interface{}) {
	delete(body, "user")
}

// ownReviewsOnly lets authors change their own reviews. Admins may change
// any review.
func ownReviewsOnly(r *http.Request, review *model.Review) error {
	user := middleware.GetUser(r.Context())
	if user == nil {
		return model.NewUnauthorizedError("You are not logged in! Please log in to get access.")
	}
	if user.Role == model.UserRoleAdmin || review.User.ID == user.ID {
		return nil
	}
	return model.NewForbiddenError("You can only change your own reviews")
}
