package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/forgo/trailhead/api/internal/model"
)

// Pinger checks a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health returns the GET /health handler. It answers 503 when the database
// does not respond within two seconds.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			WriteError(w, model.NewAppError(http.StatusServiceUnavailable, model.ErrCodeDatabase, "Database unavailable"))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// NotFound answers every unmatched route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, model.NewNotFoundError("Can't find "+r.URL.Path+" on this server!"))
}
