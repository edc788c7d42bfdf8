// Package service implements the business logic of the tour API.
//
// Resource is the generic CRUD set every document type is served through.
// It turns a request's query parameters into a query.Query and hands it to
// a Model, which is usually a repository.DocumentStore.
//
// The rating aggregation lives in RatingAggregator and ReviewModel: every
// review write is followed by a recompute of the affected tour's
// ratings_average and ratings_quantity.
//
// Services declare the storage interfaces they need (UserStore, TourStore,
// BookingStore) so tests can swap in memdb or small fakes:
//
//	reviews := service.NewReviewModel(reviewRepo, service.NewRatingAggregator(reviewRepo, tourRepo))
//	resource := service.NewResource(service.ResourceConfig[model.Review]{Model: reviews})
//	page, err := resource.GetAll(ctx, r.URL.Query())
package service
