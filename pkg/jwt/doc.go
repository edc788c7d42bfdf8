// Package jwt signs and validates the bearer tokens of the Trailhead API.
//
// Tokens are HS256 JWTs built on github.com/golang-jwt/jwt/v5:
//
//	svc, err := jwt.NewService(jwt.Config{
//	    Secret:     os.Getenv("JWT_SECRET"),
//	    Issuer:     "trailhead-api",
//	    Expiration: 90 * 24 * time.Hour,
//	})
//
//	token, err := svc.Sign(user.ID, string(user.Role))
//
//	claims, err := svc.Validate(token)
//	if errors.Is(err, jwt.ErrTokenExpired) {
//	    // ask the client to log in again
//	}
//
// The issue time is kept so callers can reject tokens that predate a
// password change.
package jwt
