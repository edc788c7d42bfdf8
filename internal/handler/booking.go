package handler

import (
	"net/http"

	"github.com/forgo/trailhead/api/internal/middleware"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/service"
)

// BookingHandler handles booking endpoints
type BookingHandler struct {
	*ResourceHandler[model.Booking]
	bookings *service.BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(resource *service.Resource[model.Booking], bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{
		ResourceHandler: NewResourceHandler(ResourceHandlerConfig[model.Booking]{Resource: resource}),
		bookings:        bookings,
	}
}

// MyTours handles GET /api/v1/bookings/my-bookings
func (h *BookingHandler) MyTours(w http.ResponseWriter, r *http.Request) {
	tours, err := h.bookings.MyTours(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteCollection(w, http.StatusOK, len(tours), map[string]interface{}{"tours": tours})
}
