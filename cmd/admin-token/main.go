// Command admin-token prints a session token for an existing user, signed
// with the server's JWT settings. The user must exist and be active for the
// API to accept the token.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/forgo/trailhead/api/internal/config"
	"github.com/forgo/trailhead/api/pkg/jwt"
)

func main() {
	userID := flag.String("user", "user:jonas", "User ID for the token")
	role := flag.String("role", "admin", "Role claim for the token")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	jwtService, err := jwt.NewService(jwt.Config{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.ExpiresIn,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating JWT service: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nSet JWT_SECRET to the value the server runs with.\n")
		os.Exit(1)
	}

	token, err := jwtService.Sign(*userID, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		output := map[string]any{
			"token":      token,
			"token_type": "Bearer",
			"expires_in": int(jwtService.GetExpiration().Seconds()),
			"user_id":    *userID,
			"role":       *role,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(output)
		return
	}

	fmt.Println("Token Generated")
	fmt.Println("===============")
	fmt.Printf("User ID:  %s\n", *userID)
	fmt.Printf("Role:     %s\n", *role)
	fmt.Printf("Expires:  %s\n", time.Now().Add(jwtService.GetExpiration()).Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s...' http://localhost:%s/api/v1/users/me\n", token[:20], cfg.Server.Port)
}
