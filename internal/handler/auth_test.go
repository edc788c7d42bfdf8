package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/middleware"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
	"github.com/forgo/trailhead/api/internal/service"
	"github.com/forgo/trailhead/api/internal/testing/memdb"
	"github.com/forgo/trailhead/api/pkg/jwt"
)

// fakeUsers keeps credentials next to the user documents. It also collects
// the mail the auth service sends.
type fakeUsers struct {
	docs   *memdb.Store[model.User]
	hashes map[string]string
	active map[string]bool
	resets map[string]string
	mail   []service.Message
}

func newFakeUsers() *fakeUsers {
	docs := memdb.New[model.User]("user")
	docs.Unique = [][]string{{"email"}}
	return &fakeUsers{docs: docs, hashes: map[string]string{}, active: map[string]bool{}, resets: map[string]string{}}
}

func (f *fakeUsers) CreateWithPassword(ctx context.Context, user *model.User, hash string) (*model.User, error) {
	created, err := f.docs.Create(ctx, map[string]interface{}{
		"name": user.Name, "email": user.Email, "photo": user.Photo, "role": string(user.Role),
	})
	if err != nil {
		return nil, err
	}
	f.hashes[created.ID] = hash
	f.active[created.ID] = true
	return created, nil
}

func (f *fakeUsers) credentials(u *model.User) *model.UserCredentials {
	if u == nil || !f.active[u.ID] {
		return nil
	}
	return &model.UserCredentials{User: *u, PasswordHash: f.hashes[u.ID], Active: true}
}

func queryByEmail(email string) query.Query {
	return query.Query{Conditions: []query.Condition{{Field: "email", Op: query.OpEq, Value: email}}}
}

func (f *fakeUsers) FindCredentialsByEmail(ctx context.Context, email string) (*model.UserCredentials, error) {
	users, err := f.docs.Find(ctx, queryByEmail(email))
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return f.credentials(users[0]), nil
}

func (f *fakeUsers) FindCredentialsByID(ctx context.Context, id string) (*model.UserCredentials, error) {
	u, err := f.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return f.credentials(u), nil
}

func (f *fakeUsers) FindByIDAndUpdate(ctx context.Context, id string, body map[string]interface{}) (*model.User, error) {
	return f.docs.FindByIDAndUpdate(ctx, id, body)
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, id, hash string) error {
	if _, ok := f.hashes[id]; !ok {
		return database.ErrNotFound
	}
	f.hashes[id] = hash
	delete(f.resets, id)
	return nil
}

func (f *fakeUsers) SetPasswordReset(ctx context.Context, id, tokenHash string, expires time.Time) error {
	if tokenHash == "" {
		delete(f.resets, id)
	} else {
		f.resets[id] = tokenHash
	}
	return nil
}

func (f *fakeUsers) FindCredentialsByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.UserCredentials, error) {
	for id, h := range f.resets {
		if h == tokenHash {
			return f.FindCredentialsByID(ctx, id)
		}
	}
	return nil, nil
}

func (f *fakeUsers) Send(ctx context.Context, msg service.Message) error {
	f.mail = append(f.mail, msg)
	return nil
}

func (f *fakeUsers) Deactivate(ctx context.Context, id string) error {
	if _, ok := f.active[id]; !ok {
		return database.ErrNotFound
	}
	f.active[id] = false
	return nil
}

func authRouter(t *testing.T) (http.Handler, *fakeUsers) {
	t.Helper()
	tokens, err := jwt.NewService(jwt.Config{
		Secret:     "handler-test-secret-with-enough-bytes",
		Issuer:     "trailhead-test",
		Expiration: time.Hour,
	})
	require.NoError(t, err)

	users := newFakeUsers()
	auth := service.NewAuthService(service.AuthServiceConfig{Users: users, Tokens: tokens, Mailer: users, BcryptCost: bcrypt.MinCost})
	h := NewAuthHandler(AuthHandlerConfig{
		Auth:   auth,
		Users:  service.NewResource(service.ResourceConfig[model.User]{Model: users.docs}),
		Cookie: CookieConfig{Expires: 24 * time.Hour},
	})
	protect := middleware.Protect(auth)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/signup", h.Signup)
	mux.HandleFunc("POST /api/v1/users/login", h.Login)
	mux.HandleFunc("GET /api/v1/users/logout", h.Logout)
	mux.HandleFunc("POST /api/v1/users/forgotPassword", h.ForgotPassword)
	mux.HandleFunc("PATCH /api/v1/users/resetPassword/{token}", h.ResetPassword)
	mux.Handle("GET /api/v1/users/me", protect(http.HandlerFunc(h.Me)))
	mux.Handle("PATCH /api/v1/users/updateMe", protect(http.HandlerFunc(h.UpdateMe)))
	mux.Handle("DELETE /api/v1/users/deleteMe", protect(http.HandlerFunc(h.DeleteMe)))
	mux.HandleFunc("POST /api/v1/users", h.CreateUser)
	return mux, users
}

type tokenEnvelope struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Data   struct {
		User model.User `json:"user"`
	} `json:"data"`
}

func signup(t *testing.T, h http.Handler) tokenEnvelope {
	t.Helper()
	rr := serve(h, http.MethodPost, "/api/v1/users/signup",
		`{"name":"Laura Wilson","email":"laura@example.com","password":"pass1234","password_confirm":"pass1234","role":"admin"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var env tokenEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func withToken(method, target, token, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// ============================================================================
// Signup / Login / Logout Tests
// ============================================================================

func TestAuthHandler_Signup(t *testing.T) {
	t.Parallel()
	h, _ := authRouter(t)

	rr := serve(h, http.MethodPost, "/api/v1/users/signup",
		`{"name":"Laura Wilson","email":"laura@example.com","password":"pass1234","password_confirm":"pass1234","role":"admin"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	var env tokenEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, "success", env.Status)
	assert.NotEmpty(t, env.Token)
	assert.Equal(t, model.UserRoleUser, env.Data.User.Role, "role is never taken from the body")
	assert.NotContains(t, rr.Body.String(), "password")

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.TokenCookie, cookies[0].Name)
	assert.Equal(t, env.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestAuthHandler_Signup_Duplicate(t *testing.T) {
	t.Parallel()
	h, _ := authRouter(t)
	signup(t, h)

	rr := serve(h, http.MethodPost, "/api/v1/users/signup",
		`{"name":"Laura Again","email":"laura@example.com","password":"pass1234","password_confirm":"pass1234"}`)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	t.Parallel()
	h, _ := authRouter(t)
	signup(t, h)

	rr := serve(h, http.MethodPost, "/api/v1/users/login", `{"email":"laura@example.com","password":"pass1234"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, http.MethodPost, "/api/v1/users/login", `{"email":"laura@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Incorrect email or password", decode(t, rr).Message)

	rr = serve(h, http.MethodPost, "/api/v1/users/login", `{"email":"laura@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Parallel()
	h, _ := authRouter(t)

	rr := serve(h, http.MethodGet, "/api/v1/users/logout", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "loggedout", cookies[0].Value)
}

// ============================================================================
// Me / UpdateMe / DeleteMe Tests
// ============================================================================

func TestAuthHandler_Me(t *testing.T) {
	t.Parallel()
	h, _ := authRouter(t)
	session := signup(t, h)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withToken(http.MethodGet, "/api/v1/users/me", session.Token, ""))

	require.Equal(t, http.StatusOK, rr.Code)
	var doc model.User
	require.NoError(t, json.Unmarshal(decode(t, rr).Data["doc"], &doc))
	assert.Equal(t, session.Data.User.ID, doc.ID)
}

func TestAuthHandler_Me_NotLoggedIn(t *testing.T) {
	t.Parallel()
	h, _ := authRouter(t)

	rr := serve(h, http.MethodGet, "/api/v1/users/me", "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthHandler_UpdateMe(t *testing.T) {
	t.Parallel()
	h, _ := authRouter(t)
	session := signup(t, h)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withToken(http.MethodPatch, "/api/v1/users/updateMe", session.Token, `{"name":"Laura Smith","role":"admin"}`))

	require.Equal(t, http.StatusOK, rr.Code)
	var user model.User
	require.NoError(t, json.Unmarshal(decode(t, rr).Data["user"], &user))
	assert.Equal(t, "Laura Smith", user.Name)
	assert.Equal(t, model.UserRoleUser, user.Role)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, withToken(http.MethodPatch, "/api/v1/users/updateMe", session.Token, `{"password":"newpass5678"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandler_DeleteMe(t *testing.T) {
	t.Parallel()
	h, users := authRouter(t)
	session := signup(t, h)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withToken(http.MethodDelete, "/api/v1/users/deleteMe", session.Token, ""))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, users.active[session.Data.User.ID])

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, withToken(http.MethodGet, "/api/v1/users/me", session.Token, ""))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthHandler_CreateUser_PointsToSignup(t *testing.T) {
	t.Parallel()
	h, _ := authRouter(t)

	rr := serve(h, http.MethodPost, "/api/v1/users", `{"name":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "This route is not defined! Please use /signup instead", decode(t, rr).Message)
}

// ============================================================================
// Forgot / Reset Password Tests
// ============================================================================

func TestAuthHandler_ForgotAndResetPassword(t *testing.T) {
	t.Parallel()
	h, users := authRouter(t)
	signup(t, h)

	rr := serve(h, http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"laura@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Token sent to email!", decode(t, rr).Message)

	require.Len(t, users.mail, 1)
	const link = "http://example.com/api/v1/users/resetPassword/"
	_, rest, ok := strings.Cut(users.mail[0].Text, link)
	require.True(t, ok, users.mail[0].Text)
	token, _, _ := strings.Cut(rest, "\n")

	rr = serve(h, http.MethodPatch, "/api/v1/users/resetPassword/"+token,
		`{"password":"brandnew123","password_confirm":"brandnew123"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var env tokenEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.NotEmpty(t, env.Token)
	require.Len(t, rr.Result().Cookies(), 1)

	rr = serve(h, http.MethodPost, "/api/v1/users/login", `{"email":"laura@example.com","password":"brandnew123"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, http.MethodPatch, "/api/v1/users/resetPassword/"+token,
		`{"password":"again12345","password_confirm":"again12345"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Token is invalid or has expired", decode(t, rr).Message)
}

func TestAuthHandler_ForgotPassword_UnknownEmail(t *testing.T) {
	t.Parallel()
	h, users := authRouter(t)

	rr := serve(h, http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"nobody@example.com"}`)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "There is no user with email address.", decode(t, rr).Message)
	assert.Empty(t, users.mail)
}
