package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/pkg/jwt"
)

// TestSecret signs every token created by this package
const TestSecret = "trailhead-test-secret-0123456789abcdef"

const testIssuer = "trailhead-test"

// NewTestJWTService returns the token service that accepts JWTHelper tokens.
func NewTestJWTService(t *testing.T) *jwt.Service {
	t.Helper()
	return tokenService(t, time.Hour)
}

func tokenService(t *testing.T, ttl time.Duration) *jwt.Service {
	t.Helper()
	svc, err := jwt.NewService(jwt.Config{Secret: TestSecret, Issuer: testIssuer, Expiration: ttl})
	require.NoError(t, err, "helpers: token service")
	return svc
}

// JWTHelper signs session tokens for fixture users.
type JWTHelper struct {
	t       *testing.T
	live    *jwt.Service
	expired *jwt.Service
}

func NewJWTHelper(t *testing.T) *JWTHelper {
	t.Helper()
	return &JWTHelper{t: t, live: tokenService(t, time.Hour), expired: tokenService(t, -time.Hour)}
}

// GenerateToken signs a token for user valid for an hour.
func (h *JWTHelper) GenerateToken(user *model.User) string {
	return h.sign(h.live, user)
}

// GenerateExpiredToken signs a token for user that expired an hour ago.
func (h *JWTHelper) GenerateExpiredToken(user *model.User) string {
	return h.sign(h.expired, user)
}

func (h *JWTHelper) sign(svc *jwt.Service, user *model.User) string {
	h.t.Helper()
	token, err := svc.Sign(user.ID, string(user.Role))
	require.NoError(h.t, err, "helpers: sign token for %s", user.ID)
	return token
}

// RequestBuilder assembles a JSON API request and serves it.
type RequestBuilder struct {
	t      *testing.T
	method string
	target string
	body   interface{}
	token  string
	header http.Header
}

func NewRequest(t *testing.T, method, target string) *RequestBuilder {
	t.Helper()
	return &RequestBuilder{t: t, method: method, target: target, header: http.Header{}}
}

// WithBody sets a value to send as JSON.
func (rb *RequestBuilder) WithBody(body interface{}) *RequestBuilder {
	rb.body = body
	return rb
}

// WithHeader sets a request header.
func (rb *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	rb.header.Set(key, value)
	return rb
}

// WithAuth sends a bearer token for user.
func (rb *RequestBuilder) WithAuth(tokens *JWTHelper, user *model.User) *RequestBuilder {
	rb.token = tokens.GenerateToken(user)
	return rb
}

// Do serves the request on h and returns the recorded response.
func (rb *RequestBuilder) Do(h http.Handler) *httptest.ResponseRecorder {
	rb.t.Helper()

	var body io.Reader
	if rb.body != nil {
		raw, err := json.Marshal(rb.body)
		require.NoError(rb.t, err, "helpers: encode body")
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(rb.method, rb.target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range rb.header {
		req.Header[k] = v
	}
	if rb.token != "" {
		req.Header.Set("Authorization", "Bearer "+rb.token)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// Envelope is any response body of the API.
type Envelope struct {
	Status  string                     `json:"status"`
	Results *int                       `json:"results,omitempty"`
	Token   string                     `json:"token,omitempty"`
	Message string                     `json:"message,omitempty"`
	Errors  []model.FieldError         `json:"errors,omitempty"`
	Data    map[string]json.RawMessage `json:"data,omitempty"`
}

func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	assert.Equal(t, want, rr.Code, "body: %s", rr.Body.String())
}

// AssertFailure checks the status code of an error envelope, its "fail" or
// "error" state, and its message unless message is empty.
func AssertFailure(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	AssertStatus(t, rr, status)

	env := DecodeEnvelope(t, rr)
	state := model.StatusFail
	if status >= http.StatusInternalServerError {
		state = model.StatusError
	}
	assert.Equal(t, state, env.Status)
	if message != "" {
		assert.Equal(t, message, env.Message)
	}
}

// AssertValidationError checks for a 400 naming field among its errors.
func AssertValidationError(t *testing.T, rr *httptest.ResponseRecorder, field string) {
	t.Helper()
	AssertStatus(t, rr, http.StatusBadRequest)

	var fields []string
	for _, fe := range DecodeEnvelope(t, rr).Errors {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, field, "body: %s", rr.Body.String())
}

func DecodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "body: %s", rr.Body.String())
	return env
}

// DecodeData decodes data[key] of the envelope into v.
func DecodeData(t *testing.T, rr *httptest.ResponseRecorder, key string, v interface{}) {
	t.Helper()
	raw, ok := DecodeEnvelope(t, rr).Data[key]
	require.True(t, ok, "no data.%s in %s", key, rr.Body.String())
	require.NoError(t, json.Unmarshal(raw, v))
}

// Rows flattens the per-statement results of database.Query into the rows of
// the last statement.
func Rows(results []interface{}) []map[string]interface{} {
	if len(results) == 0 {
		return nil
	}
	stmt, _ := results[len(results)-1].(map[string]interface{})
	switch v := stmt["result"].(type) {
	case []interface{}:
		rows := make([]map[string]interface{}, 0, len(v))
		for _, r := range v {
			if m, ok := r.(map[string]interface{}); ok {
				rows = append(rows, m)
			}
		}
		return rows
	case map[string]interface{}:
		return []map[string]interface{}{v}
	}
	return nil
}

func AssertRecordExists(t *testing.T, db database.Database, id string) {
	t.Helper()
	assert.True(t, recordExists(t, db, id), "record %s should exist", id)
}

func AssertRecordNotExists(t *testing.T, db database.Database, id string) {
	t.Helper()
	assert.False(t, recordExists(t, db, id), "record %s should be gone", id)
}

func recordExists(t *testing.T, db database.Database, id string) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := db.Query(ctx, "SELECT id FROM type::thing($id)", map[string]interface{}{"id": id})
	require.NoError(t, err, "helpers: look up %s", id)
	return len(Rows(results)) > 0
}
