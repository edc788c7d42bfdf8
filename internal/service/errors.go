package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Resource Errors =====
var (
	ErrDocumentNotFound = errors.New("no document found with that ID")
)

// ===== Authentication Errors =====
var (
	ErrMissingCredentials       = errors.New("please provide email and password")
	ErrInvalidCredentials       = errors.New("incorrect email or password")
	ErrEmailAlreadyExists       = errors.New("email already registered")
	ErrNotLoggedIn              = errors.New("not logged in")
	ErrUserNoLongerExists       = errors.New("user belonging to this token no longer exists")
	ErrPasswordChanged          = errors.New("user recently changed password")
	ErrWrongPassword            = errors.New("current password is wrong")
	ErrPasswordUpdateNotAllowed = errors.New("password updates go through updateMyPassword")
	ErrUseSignup                = errors.New("users are created through signup")
	ErrNoUserWithEmail          = errors.New("there is no user with that email address")
	ErrResetTokenInvalid        = errors.New("reset token is invalid or has expired")
	ErrEmailDelivery            = errors.New("sending the email failed")
)

// ===== Tour Errors =====
var (
	ErrInvalidLatLng   = errors.New("latitude and longitude must be in the format lat,lng")
	ErrInvalidUnit     = errors.New("unit must be mi or km")
	ErrInvalidDistance = errors.New("distance must be a positive number")
	ErrInvalidYear     = errors.New("year must be a four digit number")
)
