// Package testdb opens a migrated SurrealDB namespace per test.
//
// It reads the same variables as the server with a TEST_ prefix
// (TEST_DB_HOST, TEST_DB_PORT, TEST_DB_USER, TEST_DB_PASSWORD). Tests are
// skipped when TEST_DB_HOST is unset, so a plain `go test ./...` needs no
// database.
//
//	tdb := testdb.New(t)
//	f := fixtures.New(tdb.DB)
//	tour := f.CreateTour(t)
package testdb

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"

	"github.com/forgo/trailhead/api/internal/config"
	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/testing/helpers"
	"github.com/forgo/trailhead/api/migrations"
)

const opTimeout = 10 * time.Second

// TestDB is a connection scoped to a throwaway namespace. The namespace is
// removed when the test finishes.
type TestDB struct {
	DB        database.Database
	Namespace string
	t         *testing.T
}

// New connects, applies migrations and registers cleanup, or skips the test
// when no database is configured.
func New(t *testing.T) *TestDB {
	t.Helper()

	if _, ok := os.LookupEnv("TEST_DB_HOST"); !ok {
		t.Skip("testdb: TEST_DB_HOST not set")
	}

	var dbCfg config.DatabaseConfig
	if err := env.ParseWithOptions(&dbCfg, env.Options{Prefix: "TEST_"}); err != nil {
		t.Fatalf("testdb: parse env: %v", err)
	}

	ns := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	db := database.NewSurrealDB(database.Config{
		Host:      dbCfg.Host,
		Port:      dbCfg.Port,
		User:      dbCfg.User,
		Password:  dbCfg.Password,
		Namespace: ns,
		Database:  "trailhead",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*opTimeout)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		t.Fatalf("testdb: connect: %v", err)
	}
	if err := database.Migrate(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		t.Fatalf("testdb: migrate: %v", err)
	}

	tdb := &TestDB{DB: db, Namespace: ns, t: t}
	t.Cleanup(tdb.drop)
	return tdb
}

func (tdb *TestDB) drop() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := tdb.DB.Execute(ctx, "REMOVE NAMESPACE "+tdb.Namespace, nil); err != nil {
		tdb.t.Logf("testdb: remove namespace %s: %v", tdb.Namespace, err)
	}
	_ = tdb.DB.Close()
}

// Ctx returns a short-lived context released with the test.
func (tdb *TestDB) Ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	tdb.t.Cleanup(cancel)
	return ctx
}

// Count returns the number of records in table.
func (tdb *TestDB) Count(table string) int {
	tdb.t.Helper()
	rows, err := tdb.DB.Query(tdb.Ctx(), "SELECT count() AS n FROM type::table($tb) GROUP ALL", map[string]interface{}{"tb": table})
	if err != nil {
		tdb.t.Fatalf("testdb: count %s: %v", table, err)
	}
	for _, row := range helpers.Rows(rows) {
		switch n := row["n"].(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		case uint64:
			return int(n)
		}
	}
	return 0
}
