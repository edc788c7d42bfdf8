package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

// Mock implementations

type resetEntry struct {
	hash    string
	expires time.Time
}

type mockUserStore struct {
	creds     map[string]*model.UserCredentials
	resets    map[string]resetEntry
	seq       int
	createErr error
	getErr    error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{creds: make(map[string]*model.UserCredentials), resets: make(map[string]resetEntry)}
}

func (m *mockUserStore) CreateWithPassword(ctx context.Context, user *model.User, hash string) (*model.User, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	user.BeforeSave()
	for _, c := range m.creds {
		if c.User.Email == user.Email {
			return nil, database.ErrDuplicate
		}
	}
	m.seq++
	user.ID = "user:" + strings.Repeat("u", m.seq)
	user.CreatedOn = time.Now()
	m.creds[user.ID] = &model.UserCredentials{User: *user, PasswordHash: hash, Active: true}
	return user, nil
}

func (m *mockUserStore) FindCredentialsByEmail(ctx context.Context, email string) (*model.UserCredentials, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, c := range m.creds {
		if c.User.Email == email && c.Active {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockUserStore) FindCredentialsByID(ctx context.Context, id string) (*model.UserCredentials, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.creds[id]
	if !ok || !c.Active {
		return nil, nil
	}
	return c, nil
}

func (m *mockUserStore) FindByIDAndUpdate(ctx context.Context, id string, body map[string]interface{}) (*model.User, error) {
	c, ok := m.creds[id]
	if !ok || !c.Active {
		return nil, nil
	}
	if name, ok := body["name"].(string); ok {
		c.User.Name = name
	}
	if email, ok := body["email"].(string); ok {
		c.User.Email = email
	}
	c.User.BeforeSave()
	if err := model.NewValidationFailure(c.User.Validate()); err != nil {
		return nil, err
	}
	u := c.User
	return &u, nil
}

func (m *mockUserStore) UpdatePassword(ctx context.Context, id, hash string) error {
	c, ok := m.creds[id]
	if !ok {
		return database.ErrNotFound
	}
	changed := time.Now().Add(-time.Second)
	c.PasswordHash = hash
	c.PasswordChangedAt = &changed
	delete(m.resets, id)
	return nil
}

func (m *mockUserStore) SetPasswordReset(ctx context.Context, id, tokenHash string, expires time.Time) error {
	if _, ok := m.creds[id]; !ok {
		return database.ErrNotFound
	}
	if tokenHash == "" {
		delete(m.resets, id)
		return nil
	}
	m.resets[id] = resetEntry{hash: tokenHash, expires: expires}
	return nil
}

func (m *mockUserStore) FindCredentialsByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.UserCredentials, error) {
	for id, r := range m.resets {
		if r.hash == tokenHash && r.expires.After(now) {
			return m.FindCredentialsByID(ctx, id)
		}
	}
	return nil, nil
}

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockUserStore) Deactivate(ctx context.Context, id string) error {
	c, ok := m.creds[id]
	if !ok {
		return database.ErrNotFound
	}
	c.Active = false
	return nil
}

const testJWTSecret = "a-test-secret-that-is-long-enough-for-hs256"

func setupAuthService(t *testing.T) (*AuthService, *mockUserStore) {
	t.Helper()

	tokens, err := jwt.NewService(jwt.Config{
		Secret:     testJWTSecret,
		Issuer:     "trailhead-test",
		Expiration: time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create jwt service: %v", err)
	}

	users := newMockUserStore()
	return NewAuthService(AuthServiceConfig{
		Users:      users,
		Tokens:     tokens,
		BcryptCost: bcrypt.MinCost,
	}), users
}

func validSignup() model.SignupRequest {
	return model.SignupRequest{
		Name:            "Laura Wilson",
		Email:           "Laura@Example.com",
		Password:        "pass1234",
		PasswordConfirm: "pass1234",
	}
}

// ============================================================================
// Signup Tests
// ============================================================================

func TestAuthService_Signup_Success(t *testing.T) {
	t.Parallel()
	auth, users := setupAuthService(t)

	result, err := auth.Signup(context.Background(), validSignup())
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if result.Token == "" {
		t.Error("expected a token")
	}
	if result.User.Email != "laura@example.com" {
		t.Errorf("expected normalized email, got %s", result.User.Email)
	}
	if result.User.Role != model.UserRoleUser {
		t.Errorf("expected role user, got %s", result.User.Role)
	}

	stored := users.creds[result.User.ID]
	if stored == nil {
		t.Fatal("user was not stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pass1234")); err != nil {
		t.Error("password hash verification failed")
	}
}

func TestAuthService_Signup_PasswordMismatch(t *testing.T) {
	t.Parallel()
	auth, users := setupAuthService(t)
	req := validSignup()
	req.PasswordConfirm = "pass12345"

	_, err := auth.Signup(context.Background(), req)

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(users.creds) != 0 {
		t.Error("expected no user stored")
	}
}

func TestAuthService_Signup_ShortPassword(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	req := validSignup()
	req.Password, req.PasswordConfirm = "short", "short"

	_, err := auth.Signup(context.Background(), req)

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthService_Signup_DuplicateEmail(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	ctx := context.Background()
	if _, err := auth.Signup(ctx, validSignup()); err != nil {
		t.Fatal(err)
	}

	_, err := auth.Signup(ctx, validSignup())

	if !errors.Is(err, database.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

// ============================================================================
// Login Tests
// ============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	ctx := context.Background()
	signed, _ := auth.Signup(ctx, validSignup())

	result, err := auth.Login(ctx, model.LoginRequest{Email: "laura@example.com", Password: "pass1234"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.User.ID != signed.User.ID {
		t.Errorf("expected user %s, got %s", signed.User.ID, result.User.ID)
	}
}

func TestAuthService_Login_MissingCredentials(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)

	_, err := auth.Login(context.Background(), model.LoginRequest{Email: "laura@example.com"})

	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestAuthService_Login_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	ctx := context.Background()
	if _, err := auth.Signup(ctx, validSignup()); err != nil {
		t.Fatal(err)
	}

	for _, req := range []model.LoginRequest{
		{Email: "laura@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "pass1234"},
	} {
		if _, err := auth.Login(ctx, req); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: expected ErrInvalidCredentials, got %v", req.Email, err)
		}
	}
}

func TestAuthService_Login_DeactivatedUser(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	ctx := context.Background()
	signed, _ := auth.Signup(ctx, validSignup())
	if err := auth.DeleteMe(ctx, signed.User.ID); err != nil {
		t.Fatal(err)
	}

	_, err := auth.Login(ctx, model.LoginRequest{Email: "laura@example.com", Password: "pass1234"})

	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

// ============================================================================
// Authenticate Tests
// ============================================================================

func TestAuthService_Authenticate_Success(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	ctx := context.Background()
	signed, _ := auth.Signup(ctx, validSignup())

	user, err := auth.Authenticate(ctx, signed.Token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.ID != signed.User.ID {
		t.Errorf("expected user %s, got %s", signed.User.ID, user.ID)
	}
}

func TestAuthService_Authenticate_MissingToken(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)

	if _, err := auth.Authenticate(context.Background(), ""); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestAuthService_Authenticate_GarbageToken(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)

	if _, err := auth.Authenticate(context.Background(), "not.a.token"); !errors.Is(err, jwt.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthService_Authenticate_DeletedUser(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	ctx := context.Background()
	signed, _ := auth.Signup(ctx, validSignup())
	if err := auth.DeleteMe(ctx, signed.User.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := auth.Authenticate(ctx, signed.Token); !errors.Is(err, ErrUserNoLongerExists) {
		t.Errorf("expected ErrUserNoLongerExists, got %v", err)
	}
}

func TestAuthService_Authenticate_PasswordChangedAfterIssue(t *testing.T) {
	t.Parallel()
	auth, users := setupAuthService(t)
	ctx := context.Background()
	signed, _ := auth.Signup(ctx, validSignup())
	later := time.Now().Add(time.Hour)
	users.creds[signed.User.ID].PasswordChangedAt = &later

	if _, err := auth.Authenticate(ctx, signed.Token); !errors.Is(err, ErrPasswordChanged) {
		t.Errorf("expected ErrPasswordChanged, got %v", err)
	}
}

// ============================================================================
// UpdatePassword / UpdateMe / DeleteMe Tests
// ============================================================================

func TestAuthService_UpdatePassword_Success(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	ctx := context.Background()
	signed, _ := auth.Signup(ctx, validSignup())

	result, err := auth.UpdatePassword(ctx, signed.User.ID, model.UpdatePasswordRequest{
		PasswordCurrent: "pass1234",
		Password:        "newpass5678",
		PasswordConfirm: "newpass5678",
	})
	if err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	if result.Token == "" {
		t.Error("expected a fresh token")
	}

	if _, err := auth.Login(ctx, model.LoginRequest{Email: "laura@example.com", Password: "newpass5678"}); err != nil {
		t.Errorf("expected login with new password, got %v", err)
	}
	if _, err := auth.Login(ctx, model.LoginRequest{Email: "laura@example.com", Password: "pass1234"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected old password rejected, got %v", err)
	}
}

func TestAuthService_UpdatePassword_WrongCurrent(t *testing.T) {
	t.Parallel()
	auth, users := setupAuthService(t)
	ctx := context.Background()
	signed, _ := auth.Signup(ctx, validSignup())

	_, err := auth.UpdatePassword(ctx, signed.User.ID, model.UpdatePasswordRequest{
		PasswordCurrent: "not-my-password",
		Password:        "newpass5678",
		PasswordConfirm: "newpass5678",
	})

	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
	if users.creds[signed.User.ID].PasswordChangedAt != nil {
		t.Error("expected password untouched")
	}
}

func TestAuthService_UpdateMe_OnlyNameAndEmail(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	ctx := context.Background()
	signed, _ := auth.Signup(ctx, validSignup())

	user, err := auth.UpdateMe(ctx, signed.User.ID, map[string]interface{}{
		"name": "Laura Smith",
		"role": "admin",
	})
	if err != nil {
		t.Fatalf("UpdateMe failed: %v", err)
	}
	if user.Name != "Laura Smith" {
		t.Errorf("expected name updated, got %s", user.Name)
	}
	if user.Role != model.UserRoleUser {
		t.Errorf("expected role to stay user, got %s", user.Role)
	}
}

func TestAuthService_UpdateMe_RejectsPassword(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	ctx := context.Background()
	signed, _ := auth.Signup(ctx, validSignup())

	_, err := auth.UpdateMe(ctx, signed.User.ID, map[string]interface{}{"password": "newpass5678"})

	if !errors.Is(err, ErrPasswordUpdateNotAllowed) {
		t.Errorf("expected ErrPasswordUpdateNotAllowed, got %v", err)
	}
}

func TestAuthService_UpdateMe_InvalidEmail(t *testing.T) {
	t.Parallel()
	auth, _ := setupAuthService(t)
	ctx := context.Background()
	signed, _ := auth.Signup(ctx, validSignup())

	_, err := auth.UpdateMe(ctx, signed.User.ID, map[string]interface{}{"email": "not-an-email"})

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// ============================================================================
// Password Reset Tests
// ============================================================================

const resetURL = "http://localhost:3000/api/v1/users/resetPassword/"

func setupResetService(t *testing.T) (*AuthService, *mockUserStore, *recordingMailer) {
	t.Helper()
	svc, users := setupAuthService(t)
	mailer := &recordingMailer{}
	svc.mailer = mailer
	if _, err := svc.Signup(context.Background(), validSignup()); err != nil {
		t.Fatalf("Signup() error: %v", err)
	}
	return svc, users, mailer
}

func sentToken(t *testing.T, mailer *recordingMailer) string {
	t.Helper()
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mailer.sent))
	}
	_, rest, ok := strings.Cut(mailer.sent[0].Text, resetURL)
	if !ok {
		t.Fatalf("email has no reset link: %q", mailer.sent[0].Text)
	}
	token, _, _ := strings.Cut(rest, "\n")
	return token
}

func TestForgotPassword_StoresHashAndMailsToken(t *testing.T) {
	t.Parallel()
	svc, users, mailer := setupResetService(t)

	if err := svc.ForgotPassword(context.Background(), "laura@example.com", resetURL); err != nil {
		t.Fatalf("ForgotPassword() error: %v", err)
	}

	token := sentToken(t, mailer)
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64 hex characters", len(token))
	}
	if mailer.sent[0].To != "laura@example.com" {
		t.Errorf("To = %q", mailer.sent[0].To)
	}
	if !strings.Contains(mailer.sent[0].Subject, "valid for 10 min") {
		t.Errorf("Subject = %q", mailer.sent[0].Subject)
	}

	var entry resetEntry
	for _, r := range users.resets {
		entry = r
	}
	if entry.hash == token || entry.hash != hashResetToken(token) {
		t.Errorf("stored %q, want the SHA-256 of the mailed token", entry.hash)
	}
	if d := time.Until(entry.expires); d < 9*time.Minute || d > 10*time.Minute {
		t.Errorf("expires in %v, want about 10 minutes", d)
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	t.Parallel()
	svc, _, mailer := setupResetService(t)

	err := svc.ForgotPassword(context.Background(), "nobody@example.com", resetURL)
	if !errors.Is(err, ErrNoUserWithEmail) {
		t.Errorf("ForgotPassword() error = %v, want ErrNoUserWithEmail", err)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("sent %d emails, want none", len(mailer.sent))
	}
}

func TestForgotPassword_DeliveryFailureClearsToken(t *testing.T) {
	t.Parallel()
	svc, users, mailer := setupResetService(t)
	mailer.err = errors.New("smtp down")

	err := svc.ForgotPassword(context.Background(), "laura@example.com", resetURL)
	if !errors.Is(err, ErrEmailDelivery) {
		t.Errorf("ForgotPassword() error = %v, want ErrEmailDelivery", err)
	}
	if len(users.resets) != 0 {
		t.Errorf("reset token left behind after failed delivery")
	}
}

func TestResetPassword_SetsPasswordAndConsumesToken(t *testing.T) {
	t.Parallel()
	svc, users, mailer := setupResetService(t)
	ctx := context.Background()
	if err := svc.ForgotPassword(ctx, "laura@example.com", resetURL); err != nil {
		t.Fatalf("ForgotPassword() error: %v", err)
	}
	token := sentToken(t, mailer)

	req := model.ResetPasswordRequest{Password: "brandnew123", PasswordConfirm: "brandnew123"}
	result, err := svc.ResetPassword(ctx, token, req)
	if err != nil {
		t.Fatalf("ResetPassword() error: %v", err)
	}
	if result.Token == "" {
		t.Error("ResetPassword() returned no session token")
	}
	if _, err := svc.Login(ctx, model.LoginRequest{Email: "laura@example.com", Password: "brandnew123"}); err != nil {
		t.Errorf("Login() with new password error: %v", err)
	}
	if len(users.resets) != 0 {
		t.Error("reset token still stored after use")
	}

	if _, err := svc.ResetPassword(ctx, token, req); !errors.Is(err, ErrResetTokenInvalid) {
		t.Errorf("second ResetPassword() error = %v, want ErrResetTokenInvalid", err)
	}
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	t.Parallel()
	svc, _, mailer := setupResetService(t)
	ctx := context.Background()
	if err := svc.ForgotPassword(ctx, "laura@example.com", resetURL); err != nil {
		t.Fatalf("ForgotPassword() error: %v", err)
	}
	token := sentToken(t, mailer)
	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }

	_, err := svc.ResetPassword(ctx, token, model.ResetPasswordRequest{Password: "brandnew123", PasswordConfirm: "brandnew123"})
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Errorf("ResetPassword() error = %v, want ErrResetTokenInvalid", err)
	}
}

func TestResetPassword_InvalidPasswordKeepsToken(t *testing.T) {
	t.Parallel()
	svc, users, mailer := setupResetService(t)
	ctx := context.Background()
	if err := svc.ForgotPassword(ctx, "laura@example.com", resetURL); err != nil {
		t.Fatalf("ForgotPassword() error: %v", err)
	}
	token := sentToken(t, mailer)

	_, err := svc.ResetPassword(ctx, token, model.ResetPasswordRequest{Password: "brandnew123", PasswordConfirm: "different1"})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("ResetPassword() error = %v, want a validation failure", err)
	}
	if len(users.resets) != 1 {
		t.Error("a rejected password must not consume the token")
	}
	if _, err := svc.ResetPassword(ctx, "", model.ResetPasswordRequest{}); !errors.Is(err, ErrResetTokenInvalid) {
		t.Errorf("empty token error = %v, want ErrResetTokenInvalid", err)
	}
}
