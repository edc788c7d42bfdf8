package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
)

// seedTables lists the tables cleared by delete, dependents first.
var seedTables = []string{"booking", "review", "tour", "user"}

// SeedUser is a user entry of users.json. The password is plain text.
type SeedUser struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Photo    string         `json:"photo"`
	Role     model.UserRole `json:"role"`
	Password string         `json:"password"`
}

// Dataset is the content of a dev data directory
type Dataset struct {
	Tours   []map[string]interface{}
	Users   []SeedUser
	Reviews []map[string]interface{}
}

// LoadDataset reads tours.json, users.json and reviews.json from fsys. A
// missing file means no entries of that kind.
func LoadDataset(fsys fs.FS) (*Dataset, error) {
	var ds Dataset
	files := []struct {
		name string
		into interface{}
	}{
		{"tours.json", &ds.Tours},
		{"users.json", &ds.Users},
		{"reviews.json", &ds.Reviews},
	}
	for _, f := range files {
		raw, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", f.name, err)
		}
		if err := json.Unmarshal(raw, f.into); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f.name, err)
		}
	}
	return &ds, nil
}

// TourCreator stores tours
type TourCreator interface {
	Create(ctx context.Context, body map[string]interface{}) (*model.Tour, error)
}

// UserCreator stores users with a password hash
type UserCreator interface {
	CreateWithPassword(ctx context.Context, user *model.User, hash string) (*model.User, error)
}

// ReviewCreator stores reviews without touching tour ratings
type ReviewCreator interface {
	Create(ctx context.Context, body map[string]interface{}) (*model.Review, error)
}

// RatingRecomputer rebuilds the rating statistics of one tour
type RatingRecomputer interface {
	CalcAverageRatings(ctx context.Context, tourID string) error
}

// Seeder imports and deletes dev data
type Seeder struct {
	Tours      TourCreator
	Users      UserCreator
	Reviews    ReviewCreator
	Ratings    RatingRecomputer
	BcryptCost int
}

// Import stores users, tours and reviews in that order, then recomputes the
// ratings of every imported tour once.
func (s *Seeder) Import(ctx context.Context, ds *Dataset) error {
	cost := s.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	for _, u := range ds.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return fmt.Errorf("hash password of %s: %w", u.Email, err)
		}
		role := u.Role
		if role == "" {
			role = model.UserRoleUser
		}
		if _, err := s.Users.CreateWithPassword(ctx, &model.User{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
			Photo: u.Photo,
			Role:  role,
		}, string(hash)); err != nil {
			return fmt.Errorf("import user %s: %w", u.Email, err)
		}
	}

	tourIDs := make([]string, 0, len(ds.Tours))
	for _, body := range ds.Tours {
		tour, err := s.Tours.Create(ctx, body)
		if err != nil {
			return fmt.Errorf("import tour %v: %w", body["name"], err)
		}
		tourIDs = append(tourIDs, tour.ID)
	}

	for i, body := range ds.Reviews {
		if _, err := s.Reviews.Create(ctx, body); err != nil {
			return fmt.Errorf("import review %d: %w", i, err)
		}
	}

	for _, id := range tourIDs {
		if err := s.Ratings.CalcAverageRatings(ctx, id); err != nil {
			return err
		}
	}

	slog.Info("dev data imported",
		slog.Int("users", len(ds.Users)),
		slog.Int("tours", len(ds.Tours)),
		slog.Int("reviews", len(ds.Reviews)))
	return nil
}

// DeleteAll clears every seeded table in one transaction.
func DeleteAll(ctx context.Context, db database.Database) error {
	batch := database.NewAtomicBatch()
	for _, table := range seedTables {
		batch.Add("DELETE "+table, nil)
	}
	if err := batch.Execute(ctx, db); err != nil {
		return fmt.Errorf("delete dev data: %w", err)
	}
	slog.Info("dev data deleted", slog.Int("tables", batch.Len()))
	return nil
}
