package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgo/trailhead/api/internal/config"
	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/handler"
	"github.com/forgo/trailhead/api/internal/jobs"
	"github.com/forgo/trailhead/api/internal/middleware"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
	"github.com/forgo/trailhead/api/internal/repository"
	"github.com/forgo/trailhead/api/internal/service"
	"github.com/forgo/trailhead/api/pkg/jwt"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.IsDevelopment() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
		slog.SetDefault(logger)
	}

	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	tokens, err := jwt.NewService(jwt.Config{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.ExpiresIn,
	})
	if err != nil {
		slog.Error("failed to initialize JWT service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Repositories
	tourRepo := repository.NewTourRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	userRepo := repository.NewUserRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	// Services
	ratings := service.NewRatingAggregator(reviewRepo, tourRepo)
	reviewModel := service.NewReviewModel(reviewRepo, ratings)
	tourService := service.NewTourService(tourRepo, service.NewGeoService())
	bookingService := service.NewBookingService(bookingRepo, tourRepo)
	authService := service.NewAuthService(service.AuthServiceConfig{
		Users:         userRepo,
		Tokens:        tokens,
		Mailer:        service.LogMailer{Logger: slog.Default()},
		BcryptCost:    cfg.BcryptCost,
		ResetTokenTTL: cfg.PasswordResetTTL,
	})

	queryOpts := []query.Option{
		query.WithMaxLimit(cfg.Query.MaxLimit),
		query.WithDefaultLimit(cfg.Query.DefaultLimit),
	}
	tours := service.NewResource(service.ResourceConfig[model.Tour]{
		Model:        tourRepo,
		Populate:     []query.Populate{repository.TourReviews},
		QueryOptions: queryOpts,
	})
	reviews := service.NewResource(service.ResourceConfig[model.Review]{Model: reviewModel, QueryOptions: queryOpts})
	users := service.NewResource(service.ResourceConfig[model.User]{Model: userRepo, QueryOptions: queryOpts})
	bookings := service.NewResource(service.ResourceConfig[model.Booking]{Model: bookingRepo, QueryOptions: queryOpts})

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	})
	defer rateLimiter.Stop()

	idempotencyStore := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{})
	defer idempotencyStore.Stop()

	rt := &router{
		tours:   handler.NewTourHandler(tours, tourService),
		reviews: handler.NewReviewHandler(reviews),
		users: handler.NewAuthHandler(handler.AuthHandlerConfig{
			Auth:  authService,
			Users: users,
			Cookie: handler.CookieConfig{
				Expires: cfg.CookieExpires(),
				Secure:  cfg.IsProduction(),
			},
		}),
		bookings:    handler.NewBookingHandler(bookings, bookingService),
		auth:        authService,
		limiter:     rateLimiter,
		idempotency: idempotencyStore,
		db:          db,
		origins:     cfg.Server.AllowedOrigins,
	}

	var reconciler *jobs.RatingsReconciler
	if cfg.Jobs.RatingsReconcileInterval > 0 {
		reconciler = jobs.NewRatingsReconciler(tourRepo, ratings, cfg.Jobs.RatingsReconcileInterval)
		reconciler.Start()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      rt.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", slog.String("signal", sig.String()))
	case err := <-serverErr:
		slog.Error("server error", slog.String("error", err.Error()))
	}

	if reconciler != nil {
		reconciler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}
	if err := db.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}
