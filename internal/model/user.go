package model

import (
	"net/mail"
	"strings"
	"time"
)

// UserRole represents the role of a user in the system
type UserRole string

const (
	UserRoleUser      UserRole = "user" // Default role
	UserRoleGuide     UserRole = "guide"
	UserRoleLeadGuide UserRole = "lead-guide"
	UserRoleAdmin     UserRole = "admin"
)

// MinPasswordLength is enforced on signup and password changes.
const MinPasswordLength = 8

// DefaultPhoto is assigned to users who never uploaded one.
const DefaultPhoto = "default.jpg"

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleGuide, UserRoleLeadGuide, UserRoleAdmin:
		return true
	}
	return false
}

// User represents a user account. Credentials live in UserCredentials and are
// never serialized.
type User struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Photo     string    `json:"photo,omitempty"`
	Role      UserRole  `json:"role"`
	CreatedOn time.Time `json:"created_on"`
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// ApplyDefaults implements Defaulter
func (u *User) ApplyDefaults() {
	if u.Role == "" {
		u.Role = UserRoleUser
	}
	if u.Photo == "" {
		u.Photo = DefaultPhoto
	}
}

// BeforeSave implements Preparer
func (u *User) BeforeSave() {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
}

// Validate implements Validator
func (u *User) Validate() []FieldError {
	var errors []FieldError

	if strings.TrimSpace(u.Name) == "" {
		errors = append(errors, FieldError{Field: "name", Message: "Please tell us your name!"})
	}
	if u.Email == "" {
		errors = append(errors, FieldError{Field: "email", Message: "Please provide your email"})
	} else if !ValidEmail(u.Email) {
		errors = append(errors, FieldError{Field: "email", Message: "Please provide a valid email"})
	}
	if !u.Role.Valid() {
		errors = append(errors, FieldError{Field: "role", Message: "Role is either: user, guide, lead-guide, admin"})
	}

	return errors
}

// ValidEmail reports whether s is a bare email address.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// UserSummary is the populated form of a link to a user.
type UserSummary struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Photo string   `json:"photo,omitempty"`
	Role  UserRole `json:"role,omitempty"`
}

// UserCredentials is the authentication state of a user as stored.
type UserCredentials struct {
	User              User
	PasswordHash      string
	PasswordChangedAt *time.Time
	Active            bool
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at issuedAt.
func (c *UserCredentials) ChangedPasswordAfter(issuedAt time.Time) bool {
	if c.PasswordChangedAt == nil {
		return false
	}
	return c.PasswordChangedAt.Truncate(time.Second).After(issuedAt)
}

// SignupRequest is the body of POST /users/signup
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Photo           string `json:"photo,omitempty"`
}

// Validate checks the signup request
func (r *SignupRequest) Validate() []FieldError {
	u := User{Name: r.Name, Email: strings.ToLower(strings.TrimSpace(r.Email)), Role: UserRoleUser}
	errors := u.Validate()
	errors = append(errors, validatePassword(r.Password, r.PasswordConfirm)...)
	return errors
}

// LoginRequest is the body of POST /users/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdatePasswordRequest is the body of PATCH /users/updateMyPassword
type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"password_current"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Validate checks the new password
func (r *UpdatePasswordRequest) Validate() []FieldError {
	var errors []FieldError
	if r.PasswordCurrent == "" {
		errors = append(errors, FieldError{Field: "password_current", Message: "Please provide your current password"})
	}
	return append(errors, validatePassword(r.Password, r.PasswordConfirm)...)
}

// ForgotPasswordRequest is the body of POST /users/forgotPassword
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of PATCH /users/resetPassword/{token}
type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Validate checks the new password
func (r *ResetPasswordRequest) Validate() []FieldError {
	return validatePassword(r.Password, r.PasswordConfirm)
}

func validatePassword(password, confirm string) []FieldError {
	var errors []FieldError
	if password == "" {
		errors = append(errors, FieldError{Field: "password", Message: "Please provide a password"})
	} else if len(password) < MinPasswordLength {
		errors = append(errors, FieldError{Field: "password", Message: "Password must have at least 8 characters"})
	}
	if confirm == "" {
		errors = append(errors, FieldError{Field: "password_confirm", Message: "Please confirm your password"})
	} else if confirm != password {
		errors = append(errors, FieldError{Field: "password_confirm", Message: "Passwords are not the same!"})
	}
	return errors
}
