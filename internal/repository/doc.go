// Package repository implements SurrealDB storage for the tour API.
//
// DocumentStore[T] is the generic store behind every resource. A Schema
// names its table and describes how fields map to SurrealQL: record links,
// datetimes, hidden fields, a default scope and read-only fields. Queries
// built by the query package are rendered into parameterized SELECT
// statements with $variables, never by string interpolation of values.
//
// The typed repositories (TourRepository, ReviewRepository, UserRepository,
// BookingRepository) embed a DocumentStore and add the aggregate queries
// their services need:
//
//	tours := repository.NewTourRepository(db)
//	top, err := tours.Find(ctx, query.Query{Sort: []query.SortKey{{Field: "price"}}, Limit: 5})
//	if err != nil {
//	    return err
//	}
package repository
