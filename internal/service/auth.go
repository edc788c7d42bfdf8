package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost factor (10-14 recommended for production)
const defaultBcryptCost = 12

const defaultResetTokenTTL = 10 * time.Minute

// updatableProfileFields are the only fields a user may change on their own
// profile.
var updatableProfileFields = []string{"name", "email"}

// UserStore defines the interface for user storage
type UserStore interface {
	FindByIDAndUpdate(ctx context.Context, id string, body map[string]interface{}) (*model.User, error)
	CreateWithPassword(ctx context.Context, user *model.User, hash string) (*model.User, error)
	FindCredentialsByEmail(ctx context.Context, email string) (*model.UserCredentials, error)
	FindCredentialsByID(ctx context.Context, id string) (*model.UserCredentials, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	Deactivate(ctx context.Context, id string) error
	// SetPasswordReset stores a reset token hash, or clears it when
	// tokenHash is empty.
	SetPasswordReset(ctx context.Context, id, tokenHash string, expires time.Time) error
	// FindCredentialsByResetToken returns the active user holding a reset
	// token hash that expires after now, or nil.
	FindCredentialsByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.UserCredentials, error)
}

// TokenService signs and validates session tokens
type TokenService interface {
	Sign(userID, role string) (string, error)
	Validate(token string) (*jwt.Claims, error)
}

// AuthService handles authentication operations
type AuthService struct {
	users      UserStore
	tokens     TokenService
	mailer     Mailer
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
}

// AuthServiceConfig holds configuration for the auth service
type AuthServiceConfig struct {
	Users  UserStore
	Tokens TokenService
	Mailer Mailer
	// BcryptCost defaults to 12
	BcryptCost int
	// ResetTokenTTL defaults to 10 minutes
	ResetTokenTTL time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = defaultBcryptCost
	}
	ttl := cfg.ResetTokenTTL
	if ttl == 0 {
		ttl = defaultResetTokenTTL
	}
	mailer := cfg.Mailer
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AuthService{
		users:      cfg.Users,
		tokens:     cfg.Tokens,
		mailer:     mailer,
		bcryptCost: cost,
		resetTTL:   ttl,
		now:        time.Now,
	}
}

// AuthResult is a user together with a fresh session token
type AuthResult struct {
	User  *model.User
	Token string
}

// Signup creates a user account with the default role
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (*AuthResult, error) {
	if err := model.NewValidationFailure(req.Validate()); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateWithPassword(ctx, &model.User{
		Name:  req.Name,
		Email: req.Email,
		Photo: req.Photo,
		Role:  model.UserRoleUser,
	}, string(hash))
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks an email and password
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*AuthResult, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, ErrMissingCredentials
	}

	creds, err := s.users.FindCredentialsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if creds == nil || !checkPassword(creds.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(&creds.User)
}

// Authenticate resolves a token to the active user it was issued for
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrNotLoggedIn
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	creds, err := s.users.FindCredentialsByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, ErrUserNoLongerExists
	}
	if creds.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, ErrPasswordChanged
	}
	return &creds.User, nil
}

// UpdatePassword replaces the password after checking the current one
func (s *AuthService) UpdatePassword(ctx context.Context, userID string, req model.UpdatePasswordRequest) (*AuthResult, error) {
	if err := model.NewValidationFailure(req.Validate()); err != nil {
		return nil, err
	}

	creds, err := s.users.FindCredentialsByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, ErrUserNoLongerExists
	}
	if !checkPassword(creds.PasswordHash, req.PasswordCurrent) {
		return nil, ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return nil, err
	}
	return s.issue(&creds.User)
}

// ForgotPassword stores a single-use reset token for the user with email and
// mails it as a link to resetURL followed by the token. Only the token's
// SHA-256 hash is stored.
func (s *AuthService) ForgotPassword(ctx context.Context, email, resetURL string) error {
	creds, err := s.users.FindCredentialsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if creds == nil {
		return ErrNoUserWithEmail
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.resetTTL)
	if err := s.users.SetPasswordReset(ctx, creds.User.ID, hashResetToken(token), expires); err != nil {
		return err
	}

	err = s.mailer.Send(ctx, Message{
		To:      creds.User.Email,
		Subject: fmt.Sprintf("Your password reset token (valid for %d min)", int(s.resetTTL.Minutes())),
		Text: "Forgot your password? Submit a PATCH request with your new password and password_confirm to: " +
			resetURL + token + "\nIf you didn't forget your password, please ignore this email!",
	})
	if err != nil {
		if clearErr := s.users.SetPasswordReset(ctx, creds.User.ID, "", time.Time{}); clearErr != nil {
			return fmt.Errorf("%w: %w", ErrEmailDelivery, clearErr)
		}
		return fmt.Errorf("%w: %w", ErrEmailDelivery, err)
	}
	return nil
}

// ResetPassword sets a new password for the holder of an unexpired reset
// token and starts a session. The token is consumed.
func (s *AuthService) ResetPassword(ctx context.Context, token string, req model.ResetPasswordRequest) (*AuthResult, error) {
	if token == "" {
		return nil, ErrResetTokenInvalid
	}
	creds, err := s.users.FindCredentialsByResetToken(ctx, hashResetToken(token), s.now())
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, ErrResetTokenInvalid
	}
	if err := model.NewValidationFailure(req.Validate()); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, creds.User.ID, string(hash)); err != nil {
		return nil, err
	}
	return s.issue(&creds.User)
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// UpdateMe changes the caller's name or email. Any other field is ignored;
// password fields are refused.
func (s *AuthService) UpdateMe(ctx context.Context, userID string, body map[string]interface{}) (*model.User, error) {
	if _, ok := body["password"]; ok {
		return nil, ErrPasswordUpdateNotAllowed
	}
	if _, ok := body["password_confirm"]; ok {
		return nil, ErrPasswordUpdateNotAllowed
	}

	filtered := make(map[string]interface{}, len(updatableProfileFields))
	for _, k := range updatableProfileFields {
		if v, ok := body[k]; ok {
			filtered[k] = v
		}
	}

	user, err := s.users.FindByIDAndUpdate(ctx, userID, filtered)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNoLongerExists
	}
	return user, nil
}

// DeleteMe deactivates the caller's account
func (s *AuthService) DeleteMe(ctx context.Context, userID string) error {
	return s.users.Deactivate(ctx, userID)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Sign(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
