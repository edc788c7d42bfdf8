// Package model defines the documents and request types of the tour API.
//
// # Documents
//
//   - Tour: a bookable guided tour with its schedule, locations and
//     aggregate rating (ratings_average, ratings_quantity)
//   - Review: one user's rating of one tour
//   - User: an account with a role (user, guide, lead-guide, admin)
//   - Booking: a paid seat on a tour
//
// Documents opt into the store's lifecycle by implementing Defaulter,
// Preparer, Validator and Loader. References between documents are
// Link values, which encode as a bare "table:key" id until populated.
//
// # Errors
//
// AppError is the JSON error envelope:
//
//	{"status": "fail", "message": "Invalid input data. ...", "errors": [...]}
//
// Status is "fail" for 4xx and "error" for 5xx responses. Validation
// failures keep the offending fields in Errors.
package model
