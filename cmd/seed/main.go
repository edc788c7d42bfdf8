// Command seed loads or removes the dev data set.
//
//	go run ./cmd/seed -migrate -import -dir ./dev-data
//	go run ./cmd/seed -delete
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/forgo/trailhead/api/internal/config"
	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/repository"
	"github.com/forgo/trailhead/api/internal/service"
	"github.com/forgo/trailhead/api/migrations"
)

func main() {
	doImport := flag.Bool("import", false, "Import the dev data set")
	doDelete := flag.Bool("delete", false, "Delete all tours, users, reviews and bookings")
	doMigrate := flag.Bool("migrate", false, "Apply schema migrations first")
	dir := flag.String("dir", "./dev-data", "Directory holding tours.json, users.json and reviews.json")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if !*doImport && !*doDelete && !*doMigrate {
		fmt.Fprintln(os.Stderr, "Nothing to do. Use -migrate, -import or -delete.")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*doMigrate, *doDelete, *doImport, *dir); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(doMigrate, doDelete, doImport bool, dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})
	if err := db.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if doMigrate {
		if err := database.Migrate(ctx, db, migrations.FS); err != nil {
			return err
		}
	}
	if doDelete {
		if err := DeleteAll(ctx, db); err != nil {
			return err
		}
	}
	if !doImport {
		return nil
	}

	ds, err := LoadDataset(os.DirFS(dir))
	if err != nil {
		return err
	}

	tours := repository.NewTourRepository(db)
	reviews := repository.NewReviewRepository(db)
	seeder := &Seeder{
		Tours:      tours,
		Users:      repository.NewUserRepository(db),
		Reviews:    reviews,
		Ratings:    service.NewRatingAggregator(reviews, tours),
		BcryptCost: cfg.BcryptCost,
	}
	return seeder.Import(ctx, ds)
}
