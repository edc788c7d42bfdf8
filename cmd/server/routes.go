package main

import (
	"net/http"

	"github.com/forgo/trailhead/api/internal/handler"
	"github.com/forgo/trailhead/api/internal/metrics"
	"github.com/forgo/trailhead/api/internal/middleware"
	"github.com/forgo/trailhead/api/internal/model"
)

// router holds everything the HTTP routes are built from
type router struct {
	tours       *handler.TourHandler
	reviews     *handler.ResourceHandler[model.Review]
	users       *handler.AuthHandler
	bookings    *handler.BookingHandler
	auth        middleware.Authenticator
	limiter     *middleware.RateLimiter
	idempotency *middleware.IdempotencyStore
	db          handler.Pinger
	origins     []string
}

// Handler builds the full middleware chain and route table.
func (rt *router) Handler() http.Handler {
	api := http.NewServeMux()
	rt.tourRoutes(api)
	rt.reviewRoutes(api)
	rt.userRoutes(api)
	rt.bookingRoutes(api)
	api.HandleFunc("/", handler.NotFound)

	root := http.NewServeMux()
	root.Handle("/api/", middleware.RateLimit(rt.limiter)(api))
	root.HandleFunc("GET /health", handler.Health(rt.db))
	root.Handle("GET /metrics", metrics.Handler())
	root.HandleFunc("/", handler.NotFound)

	return middleware.Chain(
		root,
		middleware.RequestID,
		metrics.InstrumentHandler,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS(rt.origins),
		middleware.Compress,
	)
}

// protected requires a session and, when roles are given, one of them.
func (rt *router) protected(h http.HandlerFunc, roles ...model.UserRole) http.Handler {
	mws := []middleware.Middleware{middleware.Protect(rt.auth)}
	if len(roles) > 0 {
		mws = append(mws, middleware.RestrictTo(roles...))
	}
	return middleware.Chain(h, mws...)
}

func (rt *router) tourRoutes(mux *http.ServeMux) {
	const base = "/api/v1/tours"
	t := rt.tours

	mux.HandleFunc("GET "+base+"/top-5-cheap", t.TopCheap)
	mux.HandleFunc("GET "+base+"/tour-stats", t.Stats)
	mux.Handle("GET "+base+"/monthly-plan", rt.protected(t.MonthlyPlan,
		model.UserRoleAdmin, model.UserRoleLeadGuide, model.UserRoleGuide))
	mux.HandleFunc("GET "+base+"/tours-within/{distance}/center/{latlng}/unit/{unit}", t.ToursWithin)
	mux.HandleFunc("GET "+base+"/distances/{latlng}/unit/{unit}", t.Distances)

	mux.HandleFunc("GET "+base, t.GetAll)
	mux.Handle("POST "+base, rt.protected(t.CreateOne, model.UserRoleAdmin, model.UserRoleLeadGuide))
	mux.HandleFunc("GET "+base+"/{id}", t.GetOne)
	mux.Handle("PATCH "+base+"/{id}", rt.protected(t.UpdateOne, model.UserRoleAdmin, model.UserRoleLeadGuide))
	mux.Handle("DELETE "+base+"/{id}", rt.protected(t.DeleteOne, model.UserRoleAdmin, model.UserRoleLeadGuide))

	// Nested reviews
	mux.HandleFunc("GET "+base+"/{tourId}/reviews", rt.reviews.GetAll)
	mux.Handle("POST "+base+"/{tourId}/reviews", rt.protected(rt.reviews.CreateOne, model.UserRoleUser))
}

func (rt *router) reviewRoutes(mux *http.ServeMux) {
	const base = "/api/v1/reviews"
	r := rt.reviews

	mux.HandleFunc("GET "+base, r.GetAll)
	mux.Handle("POST "+base, rt.protected(r.CreateOne, model.UserRoleUser))
	mux.HandleFunc("GET "+base+"/{id}", r.GetOne)
	// Authors change their own reviews; admins may change any.
	mux.Handle("PATCH "+base+"/{id}", rt.protected(r.UpdateOne, model.UserRoleUser, model.UserRoleAdmin))
	mux.Handle("DELETE "+base+"/{id}", rt.protected(r.DeleteOne, model.UserRoleUser, model.UserRoleAdmin))
}

func (rt *router) userRoutes(mux *http.ServeMux) {
	const base = "/api/v1/users"
	u := rt.users

	mux.HandleFunc("POST "+base+"/signup", u.Signup)
	mux.HandleFunc("POST "+base+"/login", u.Login)
	mux.HandleFunc("GET "+base+"/logout", u.Logout)
	mux.HandleFunc("POST "+base+"/forgotPassword", u.ForgotPassword)
	mux.HandleFunc("PATCH "+base+"/resetPassword/{token}", u.ResetPassword)

	mux.Handle("PATCH "+base+"/updateMyPassword", rt.protected(u.UpdateMyPassword))
	mux.Handle("GET "+base+"/me", rt.protected(u.Me))
	mux.Handle("PATCH "+base+"/updateMe", rt.protected(u.UpdateMe))
	mux.Handle("DELETE "+base+"/deleteMe", rt.protected(u.DeleteMe))

	mux.Handle("GET "+base, rt.protected(u.GetAll, model.UserRoleAdmin))
	mux.Handle("POST "+base, rt.protected(u.CreateUser, model.UserRoleAdmin))
	mux.Handle("GET "+base+"/{id}", rt.protected(u.GetOne, model.UserRoleAdmin))
	mux.Handle("PATCH "+base+"/{id}", rt.protected(u.UpdateOne, model.UserRoleAdmin))
	mux.Handle("DELETE "+base+"/{id}", rt.protected(u.DeleteOne, model.UserRoleAdmin))
}

func (rt *router) bookingRoutes(mux *http.ServeMux) {
	const base = "/api/v1/bookings"
	b := rt.bookings
	staff := []model.UserRole{model.UserRoleAdmin, model.UserRoleLeadGuide}

	mux.Handle("GET "+base+"/my-bookings", rt.protected(b.MyTours))

	mux.Handle("GET "+base, rt.protected(b.GetAll, staff...))
	mux.Handle("POST "+base, middleware.Chain(http.HandlerFunc(b.CreateOne),
		middleware.Protect(rt.auth),
		middleware.RestrictTo(staff...),
		middleware.Idempotency(rt.idempotency),
	))
	mux.Handle("GET "+base+"/{id}", rt.protected(b.GetOne, staff...))
	mux.Handle("PATCH "+base+"/{id}", rt.protected(b.UpdateOne, staff...))
	mux.Handle("DELETE "+base+"/{id}", rt.protected(b.DeleteOne, staff...))
}
