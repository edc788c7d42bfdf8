// Package config loads and validates the API configuration from environment
// variables.
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//
// # Environment Variables
//
//	PORT                        HTTP port (default 8080)
//	APP_ENV                     development, production or test
//	CORS_ALLOWED_ORIGINS        comma separated origins (default *)
//	DB_HOST, DB_PORT            SurrealDB endpoint
//	DB_NAMESPACE, DB_DATABASE   SurrealDB namespace and database
//	DB_USER, DB_PASSWORD        SurrealDB root credentials
//	JWT_SECRET                  HMAC secret, at least 32 characters
//	JWT_EXPIRES_IN              token lifetime (default 2160h)
//	JWT_COOKIE_EXPIRES_IN       cookie lifetime in days (default 90)
//	QUERY_DEFAULT_LIMIT         page size without ?limit= (default 100)
//	QUERY_MAX_LIMIT             largest accepted ?limit= (default 1000)
//	RATE_LIMIT_REQUESTS         requests per window per IP (default 100)
//	RATE_LIMIT_WINDOW           rate limit window (default 1h)
//	RATINGS_RECONCILE_INTERVAL  rating reconcile period, 0 disables (default 15m)
//	BCRYPT_COST                 password hash cost (default 12)
//	PASSWORD_RESET_TTL          lifetime of password reset tokens (default 10m)
package config
