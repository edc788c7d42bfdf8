// Package query turns an HTTP query-parameter bag into a store-agnostic query
// descriptor.
//
// The builder never touches the database. It composes four stages over a base
// query and the raw parameters:
//
//	q, err := query.New(base, r.URL.Query()).
//	    Filter().
//	    Sort().
//	    LimitFields().
//	    Paginate().
//	    Query()
//
// Every stage returns a new Features value, so a partially built chain can be
// reused without leaking state between requests.
//
// # Filtering
//
// All parameters except page, sort, limit and fields are filters. Bracketed
// keys select a comparison operator:
//
//	?duration[gte]=5&difficulty=easy   ->  duration >= 5 AND difficulty = "easy"
//
// Repeated keys become a membership test. Scalar values are coerced to
// integers, floats and booleans where they parse as such.
//
// # Field names
//
// Filter, sort and projection fields must be plain identifiers, optionally
// dotted (start_location.address). Anything else fails with ErrInvalidField.
// Repositories render field names into statements, so this check is what
// keeps client input out of the query text.
package query
