package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/service"
)

// TourHandler handles tour endpoints
type TourHandler struct {
	*ResourceHandler[model.Tour]
	tours *service.TourService
}

// NewTourHandler creates a new tour handler
func NewTourHandler(resource *service.Resource[model.Tour], tours *service.TourService) *TourHandler {
	return &TourHandler{
		ResourceHandler: NewResourceHandler(ResourceHandlerConfig[model.Tour]{Resource: resource}),
		tours:           tours,
	}
}

// TopCheap handles GET /api/v1/tours/top-5-cheap, the five best rated tours
// with the cheapest first among equals.
func (h *TourHandler) TopCheap(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	params.Set("limit", "5")
	params.Set("sort", "-ratings_average,price")
	params.Set("fields", "name,price,ratings_average,summary,difficulty")

	aliased := r.Clone(r.Context())
	aliased.URL.RawQuery = params.Encode()
	h.GetAll(w, aliased)
}

// Stats handles GET /api/v1/tours/tour-stats
func (h *TourHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tours.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

// MonthlyPlan handles GET /api/v1/tours/monthly-plan?year=YYYY. The year
// defaults to the current one.
func (h *TourHandler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			writeServiceError(w, r, service.ErrInvalidYear)
			return
		}
		year = y
	}

	plan, err := h.tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteCollection(w, http.StatusOK, len(plan), map[string]interface{}{"plan": plan})
}

// ToursWithin handles GET /api/v1/tours/tours-within/{distance}/center/{latlng}/unit/{unit}
func (h *TourHandler) ToursWithin(w http.ResponseWriter, r *http.Request) {
	distance, err := strconv.ParseFloat(r.PathValue("distance"), 64)
	if err != nil {
		writeServiceError(w, r, service.ErrInvalidDistance)
		return
	}

	tours, err := h.tours.ToursWithin(r.Context(), distance, r.PathValue("latlng"), r.PathValue("unit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteCollection(w, http.StatusOK, len(tours), map[string]interface{}{"docs": tours})
}

// Distances handles GET /api/v1/tours/distances/{latlng}/unit/{unit}
func (h *TourHandler) Distances(w http.ResponseWriter, r *http.Request) {
	distances, err := h.tours.Distances(r.Context(), r.PathValue("latlng"), r.PathValue("unit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, map[string]interface{}{"data": distances})
}
