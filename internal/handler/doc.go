// Package handler provides the HTTP handlers of the tour booking API.
//
// Tours, reviews, users and bookings are served by ResourceHandler, a generic
// handler over a service.Resource. Domain handlers embed it and add their own
// endpoints (aggregations, geo search, auth flows).
//
// # Response Format
//
// Successful responses use the envelope
//
//	{"status": "success", "data": {"doc": {...}}}
//
// and collections add a result count:
//
//	{"status": "success", "results": 3, "data": {"docs": [...]}}
//
// Failures are written with WriteError as {"status": "fail"|"error", "message": ...}.
// Service errors are translated by MapServiceError.
//
// # Example Usage
//
//	tours := NewTourHandler(tourResource, tourService)
//	mux.HandleFunc("GET /api/v1/tours", tours.GetAll)
//	mux.HandleFunc("GET /api/v1/tours/{id}", tours.GetOne)
package handler
