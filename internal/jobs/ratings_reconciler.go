package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/trailhead/api/internal/metrics"
)

// TourLister lists the ids of every tour
type TourLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// RatingRecomputer rebuilds the rating statistics of one tour
type RatingRecomputer interface {
	CalcAverageRatings(ctx context.Context, tourID string) error
}

// RatingsReconciler periodically recomputes the rating statistics of every
// tour. Review writes recompute their own tour; this catches what two
// concurrent recomputes of the same tour can leave behind.
type RatingsReconciler struct {
	tours      TourLister
	ratings    RatingRecomputer
	interval   time.Duration
	startDelay time.Duration
	stopCh     chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex
}

// NewRatingsReconciler creates a new ratings reconciler job
func NewRatingsReconciler(tours TourLister, ratings RatingRecomputer, interval time.Duration) *RatingsReconciler {
	if interval == 0 {
		interval = 15 * time.Minute
	}
	// ctx is cancelled by Stop.
	ctx, cancel := context.WithCancel(context.Background())
	return &RatingsReconciler{
		tours:      tours,
		ratings:    ratings,
		interval:   interval,
		startDelay: 5 * time.Second,
		stopCh:     make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins the reconciler job
func (r *RatingsReconciler) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run()
	slog.Info("ratings reconciler started", slog.Duration("interval", r.interval))
}

// Stop gracefully stops the reconciler job. It cannot be restarted.
func (r *RatingsReconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	r.cancel()
	r.wg.Wait()
	slog.Info("ratings reconciler stopped")
}

// IsRunning returns whether the reconciler is running
func (r *RatingsReconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *RatingsReconciler) run() {
	defer r.wg.Done()

	select {
	case <-time.After(r.startDelay):
	case <-r.stopCh:
		return
	}
	r.reconcile()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stopCh:
			return
		}
	}
}

func (r *RatingsReconciler) reconcile() {
	ctx, cancel := context.WithTimeout(r.ctx, 2*time.Minute)
	defer cancel()

	if err := r.RunOnce(ctx); err != nil {
		slog.Error("ratings reconcile failed", slog.String("error", err.Error()))
	}
}

// RunOnce recomputes every tour once. A failing tour does not stop the run;
// all failures are returned together.
func (r *RatingsReconciler) RunOnce(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.RecordReconcile(time.Since(start)) }()

	ids, err := r.tours.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list tours: %w", err)
	}

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.ratings.CalcAverageRatings(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	slog.Debug("ratings reconciled",
		slog.Int("tours", len(ids)),
		slog.Int("failed", len(errs)),
		slog.Duration("took", time.Since(start)))
	return errors.Join(errs...)
}
