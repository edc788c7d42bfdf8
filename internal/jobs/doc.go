// Package jobs runs background work next to the HTTP server.
//
// RatingsReconciler recomputes the rating statistics of every tour on an
// interval:
//
//	r := jobs.NewRatingsReconciler(tourRepo, aggregator, 15*time.Minute)
//	r.Start()
//	defer r.Stop()
//
// Jobs log failures and keep running.
package jobs
