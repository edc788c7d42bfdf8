package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/forgo/trailhead/api/internal/metrics"
)

// SurrealDB is the Database backed by a surrealdb.go websocket client
type SurrealDB struct {
	db     *surrealdb.DB
	config Config
}

// NewSurrealDB creates an unconnected client for cfg
func NewSurrealDB(cfg Config) *SurrealDB {
	return &SurrealDB{config: cfg}
}

// Connect opens the connection, signs in and selects the namespace and
// database. A partially opened connection is closed on failure.
func (s *SurrealDB) Connect(ctx context.Context) error {
	db, err := surrealdb.FromEndpointURLString(ctx, s.config.Endpoint())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	fail := func(step string, err error) error {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: %s: %v", ErrConnection, step, err)
	}
	if _, err := db.SignIn(ctx, &surrealdb.Auth{
		Username: s.config.User,
		Password: s.config.Password,
	}); err != nil {
		return fail("signin", err)
	}
	if err := db.Use(ctx, s.config.Namespace, s.config.Database); err != nil {
		return fail("use", err)
	}

	s.db = db
	slog.Info("connected to SurrealDB",
		slog.String("endpoint", s.config.Endpoint()),
		slog.String("namespace", s.config.Namespace),
		slog.String("database", s.config.Database),
	)
	return nil
}

// Close releases the connection. Closing twice is a no-op.
func (s *SurrealDB) Close() error {
	if s.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.db.Close(ctx)
	s.db = nil
	return err
}

// Ping asks the server for its version
func (s *SurrealDB) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrConnection
	}
	if _, err := s.db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Query runs every statement in query. The first failing statement decides
// the returned error.
func (s *SurrealDB) Query(ctx context.Context, query string, vars map[string]interface{}) (out []interface{}, err error) {
	if s.db == nil {
		return nil, ErrConnection
	}
	start := time.Now()
	defer func() { metrics.RecordQuery(time.Since(start), err) }()

	results, err := surrealdb.Query[interface{}](ctx, s.db, query, vars)
	if err != nil {
		return nil, classify(err.Error())
	}
	if results == nil {
		return nil, nil
	}

	out = make([]interface{}, 0, len(*results))
	for _, r := range *results {
		if r.Status != "OK" {
			if r.Error != nil {
				return nil, classify(r.Error.Message)
			}
			return nil, fmt.Errorf("%w: statement status %s", ErrQuery, r.Status)
		}
		out = append(out, map[string]interface{}{"status": r.Status, "result": r.Result})
	}
	return out, nil
}

// Execute runs query and discards its results
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}

// duplicateMarkers are the fragments SurrealDB puts in unique index errors.
var duplicateMarkers = []string{"already contains", "already exists", "unique"}

// classify maps a SurrealDB error message onto the package sentinels.
func classify(message string) error {
	lower := strings.ToLower(message)
	for _, marker := range duplicateMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %s", ErrDuplicate, message)
		}
	}
	return fmt.Errorf("%w: %s", ErrQuery, message)
}
