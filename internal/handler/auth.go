package handler

import (
	"net/http"
	"time"

	"github.com/forgo/trailhead/api/internal/middleware"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/service"
)

// TokenResponse is the envelope for endpoints that start a session
type TokenResponse struct {
	Status string      `json:"status"`
	Token  string      `json:"token"`
	Data   interface{} `json:"data"`
}

// CookieConfig controls the session cookie
type CookieConfig struct {
	Expires time.Duration
	Secure  bool
}

// AuthHandler handles the /api/v1/users endpoints
type AuthHandler struct {
	*ResourceHandler[model.User]
	auth   *service.AuthService
	cookie CookieConfig
}

// AuthHandlerConfig holds the dependencies of an AuthHandler
type AuthHandlerConfig struct {
	Auth   *service.AuthService
	Users  *service.Resource[model.User]
	Cookie CookieConfig
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		ResourceHandler: NewResourceHandler(ResourceHandlerConfig[model.User]{
			Resource: cfg.Users,
			OnUpdate: stripCredentials,
		}),
		auth:   cfg.Auth,
		cookie: cfg.Cookie,
	}
}

// stripCredentials keeps password changes on their own endpoint.
func stripCredentials(r *http.Request, body map[string]interface{}) {
	for _, k := range []string{"password", "password_confirm", "password_changed_at", "active"} {
		delete(body, k)
	}
}

// Signup handles POST /api/v1/users/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, badBody(err))
		return
	}

	result, err := h.auth.Signup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendToken(w, http.StatusCreated, result)
}

// Login handles POST /api/v1/users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, badBody(err))
		return
	}

	result, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendToken(w, http.StatusOK, result)
}

// Logout handles GET /api/v1/users/logout by overwriting the session cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "loggedout",
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	WriteJSON(w, http.StatusOK, map[string]string{"status": model.StatusSuccess})
}

// Me handles GET /api/v1/users/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	h.getByID(w, r, middleware.GetUserID(r.Context()))
}

// UpdateMe handles PATCH /api/v1/users/updateMe
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	body, err := DecodeBody(w, r)
	if err != nil {
		WriteError(w, badBody(err))
		return
	}

	user, err := h.auth.UpdateMe(r.Context(), middleware.GetUserID(r.Context()), body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, map[string]interface{}{"user": user})
}

// DeleteMe handles DELETE /api/v1/users/deleteMe
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteMe(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// UpdateMyPassword handles PATCH /api/v1/users/updateMyPassword
func (h *AuthHandler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	var req model.UpdatePasswordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, badBody(err))
		return
	}

	result, err := h.auth.UpdatePassword(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendToken(w, http.StatusOK, result)
}

// ForgotPassword handles POST /api/v1/users/forgotPassword
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ForgotPasswordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, badBody(err))
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email, resetURL(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  model.StatusSuccess,
		"message": "Token sent to email!",
	})
}

// ResetPassword handles PATCH /api/v1/users/resetPassword/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, badBody(err))
		return
	}

	result, err := h.auth.ResetPassword(r.Context(), r.PathValue("token"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendToken(w, http.StatusOK, result)
}

// resetURL is the reset endpoint on the host the request came in on.
func resetURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/api/v1/users/resetPassword/"
}

// CreateUser handles POST /api/v1/users, which is not how accounts are made
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	writeServiceError(w, r, service.ErrUseSignup)
}

func (h *AuthHandler) sendToken(w http.ResponseWriter, status int, result *service.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookie.Expires),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	WriteJSON(w, status, TokenResponse{
		Status: model.StatusSuccess,
		Token:  result.Token,
		Data:   map[string]interface{}{"user": result.User},
	})
}
