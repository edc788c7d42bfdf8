package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/middleware"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
	"github.com/forgo/trailhead/api/internal/repository"
	"github.com/forgo/trailhead/api/internal/service"
	"github.com/forgo/trailhead/api/pkg/jwt"
)

// MapServiceError converts a service error to the error envelope. Errors that
// are not recognized become a generic 500.
func MapServiceError(err error) *model.AppError {
	if err == nil {
		return nil
	}

	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return model.NewValidationError(verr.Fields)
	}

	switch {
	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, database.ErrNotFound):
		return model.NewNotFoundError("No document found with that ID")
	case errors.Is(err, service.ErrNoUserWithEmail):
		return model.NewNotFoundError("There is no user with email address.")

	// ===== Bad Input → 400 =====
	case errors.Is(err, query.ErrInvalidField):
		return model.NewBadRequestError(capitalize(err.Error()))
	case errors.Is(err, service.ErrMissingCredentials):
		return model.NewBadRequestError("Please provide email and password!")
	case errors.Is(err, service.ErrPasswordUpdateNotAllowed):
		return model.NewBadRequestError("This route is not for password updates. Please use /updateMyPassword.")
	case errors.Is(err, service.ErrInvalidLatLng):
		return model.NewBadRequestError("Please provide latitude and longitude in the format lat,lng.")
	case errors.Is(err, service.ErrInvalidUnit),
		errors.Is(err, service.ErrInvalidDistance),
		errors.Is(err, service.ErrInvalidYear):
		return model.NewBadRequestError(capitalize(err.Error()))
	case errors.Is(err, service.ErrResetTokenInvalid):
		return model.NewBadRequestError("Token is invalid or has expired")

	// ===== Authentication Errors → 401 =====
	case errors.Is(err, service.ErrInvalidCredentials):
		return model.NewAppError(http.StatusUnauthorized, model.ErrCodeLoginFailed, "Incorrect email or password")
	case errors.Is(err, service.ErrNotLoggedIn):
		return model.NewUnauthorizedError("You are not logged in! Please log in to get access.")
	case errors.Is(err, service.ErrUserNoLongerExists):
		return model.NewUnauthorizedError("The user belonging to this token does no longer exist.")
	case errors.Is(err, service.ErrPasswordChanged):
		return model.NewUnauthorizedError("User recently changed password! Please log in again.")
	case errors.Is(err, service.ErrWrongPassword):
		return model.NewUnauthorizedError("Your current password is wrong.")
	case errors.Is(err, jwt.ErrTokenExpired):
		return model.NewAppError(http.StatusUnauthorized, model.ErrCodeTokenExpired, "Your token has expired! Please log in again.")
	case errors.Is(err, jwt.ErrInvalidToken):
		return model.NewAppError(http.StatusUnauthorized, model.ErrCodeTokenInvalid, "Invalid token. Please log in again!")

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, database.ErrDuplicate),
		errors.Is(err, service.ErrEmailAlreadyExists):
		return model.NewConflictError("Duplicate field value. Please use another value!")
	case errors.Is(err, repository.ErrConcurrentUpdate):
		return model.NewConflictError("The document was modified by another request. Please try again.")

	// ===== Not Implemented → 500 =====
	case errors.Is(err, service.ErrUseSignup):
		return model.NewInternalError("This route is not defined! Please use /signup instead")
	case errors.Is(err, service.ErrEmailDelivery):
		return model.NewInternalError("There was an error sending the email. Try again later!")

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}

// writeServiceError maps err and writes it, logging server failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := MapServiceError(err)
	if !appErr.IsOperational() {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	WriteError(w, appErr)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
