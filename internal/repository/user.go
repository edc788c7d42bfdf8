package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// Credential fields of a user record
const (
	fieldPassword          = "password"
	fieldPasswordChangedAt = "password_changed_at"
	fieldActive            = "active"
	fieldResetToken        = "password_reset_token"
	fieldResetExpires      = "password_reset_expires"
)

// UserSchema describes the user table. Deactivated users are invisible to
// every read.
var UserSchema = Schema{
	Table: "user",
	Hidden: []string{
		fieldPassword,
		fieldPasswordChangedAt,
		fieldActive,
		fieldResetToken,
		fieldResetExpires,
	},
	Datetimes: []string{fieldPasswordChangedAt, fieldResetExpires},
	Text:      []string{"name", "email", "photo", "role"},
	Scope:     []query.Condition{query.Ne(fieldActive, false)},
}

// UserRepository handles user data access
type UserRepository struct {
	*DocumentStore[model.User]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{DocumentStore: NewDocumentStore[model.User](db, UserSchema)}
}

// CreateWithPassword stores a new active user with a password hash
func (r *UserRepository) CreateWithPassword(ctx context.Context, user *model.User, hash string) (*model.User, error) {
	return r.insert(ctx, user.ID, user, map[string]interface{}{
		fieldPassword: hash,
		fieldActive:   true,
	})
}

// FindCredentialsByEmail returns the credentials of the active user with
// email, or nil
func (r *UserRepository) FindCredentialsByEmail(ctx context.Context, email string) (*model.UserCredentials, error) {
	query := `SELECT * FROM user WHERE email = $email AND active != false LIMIT 1`
	vars := map[string]interface{}{"email": strings.ToLower(strings.TrimSpace(email))}
	return r.credentials(ctx, query, vars)
}

// FindCredentialsByID returns the credentials of the active user, or nil
func (r *UserRepository) FindCredentialsByID(ctx context.Context, id string) (*model.UserCredentials, error) {
	rid, ok := r.schema.recordID(id)
	if !ok {
		return nil, nil
	}
	query := `SELECT * FROM $id WHERE active != false`
	return r.credentials(ctx, query, map[string]interface{}{"id": rid})
}

func (r *UserRepository) credentials(ctx context.Context, query string, vars map[string]interface{}) (*model.UserCredentials, error) {
	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, fmt.Errorf("find credentials: %w", err)
	}
	records := extractQueryResults(results)
	if len(records) == 0 {
		return nil, nil
	}

	raw := records[0]
	creds := &model.UserCredentials{
		PasswordHash:      getString(raw, fieldPassword),
		PasswordChangedAt: getTime(raw, fieldPasswordChangedAt),
		Active:            raw[fieldActive] != false,
	}
	user, err := r.decode(r.visible(raw))
	if err != nil {
		return nil, err
	}
	creds.User = *user
	return creds, nil
}

// UpdatePassword stores a new hash. The change is backdated one second so
// a token issued in the same instant stays valid.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	rid, ok := r.schema.recordID(id)
	if !ok {
		return database.ErrNotFound
	}

	query := `
		UPDATE $id SET
			password = $hash,
			password_changed_at = $changed_at,
			password_reset_token = NONE,
			password_reset_expires = NONE,
			version = (version ?? 0) + 1
		WHERE version != NONE
	`
	vars := map[string]interface{}{
		"id":         rid,
		"hash":       hash,
		"changed_at": models.CustomDateTime{Time: time.Now().UTC().Add(-time.Second)},
	}
	if err := r.db.Execute(ctx, query, vars); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetPasswordReset stores the hash of a reset token and its expiry. An empty
// tokenHash clears both.
func (r *UserRepository) SetPasswordReset(ctx context.Context, id, tokenHash string, expires time.Time) error {
	rid, ok := r.schema.recordID(id)
	if !ok {
		return database.ErrNotFound
	}

	query := `UPDATE $id SET password_reset_token = $token, password_reset_expires = $expires WHERE version != NONE`
	vars := map[string]interface{}{"id": rid, "token": nil, "expires": nil}
	if tokenHash != "" {
		vars["token"] = tokenHash
		vars["expires"] = models.CustomDateTime{Time: expires.UTC()}
	}
	if err := r.db.Execute(ctx, query, vars); err != nil {
		return fmt.Errorf("set password reset: %w", err)
	}
	return nil
}

// FindCredentialsByResetToken returns the active user holding tokenHash
// while it is unexpired at now, or nil
func (r *UserRepository) FindCredentialsByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.UserCredentials, error) {
	query := `
		SELECT * FROM user
		WHERE password_reset_token = $token
			AND password_reset_expires > $now
			AND active != false
		LIMIT 1
	`
	vars := map[string]interface{}{
		"token": tokenHash,
		"now":   models.CustomDateTime{Time: now.UTC()},
	}
	return r.credentials(ctx, query, vars)
}

// Deactivate marks the user inactive. The record is kept.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	rid, ok := r.schema.recordID(id)
	if !ok {
		return database.ErrNotFound
	}

	query := `UPDATE $id SET active = false, version = (version ?? 0) + 1 WHERE version != NONE`
	if err := r.db.Execute(ctx, query, map[string]interface{}{"id": rid}); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}
