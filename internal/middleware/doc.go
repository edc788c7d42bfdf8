// Package middleware provides HTTP middleware for the tour booking API.
//
//   - Protect: resolves the JWT from the Authorization header or the jwt cookie
//   - RestrictTo: role check, after Protect
//   - RateLimit: per client IP token buckets
//   - Idempotency: replays POST responses for a repeated Idempotency-Key
//   - RequestID, Logger, Recovery, CORS, Compress: request plumbing
//
// Handlers read the caller with GetUser or GetUserID and the request id with
// GetRequestID.
package middleware
