package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/rezkam/taskflow/internal/application/auth"
	"github.com/rezkam/taskflow/internal/config"
)

// Command-line tool that signs a bearer token for a user with the server's
// TASKFLOW_AUTH_* settings. For development and testing.
func main() {
	user := flag.String("user", "", "User ID the token is issued for (required)")
	ttl := flag.Duration("ttl", 0, "Token lifetime (0 = TASKFLOW_AUTH_TOKEN_TTL or the default)")

	flag.Parse()

	if *user == "" {
		flag.Usage()
		log.Fatal("-user is required")
	}

	cfg, err := config.LoadTokenConfig()
	if err != nil {
		log.Fatal(err)
	}

	tokenTTL := cfg.Auth.TokenTTL
	if *ttl > 0 {
		tokenTTL = *ttl
	}

	authenticator, err := auth.NewAuthenticator(auth.Config{
		Secret:   []byte(cfg.Auth.Secret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TokenTTL: tokenTTL,
	})
	if err != nil {
		log.Fatalf("Failed to create authenticator: %v", err)
	}

	token, expiresAt, err := authenticator.IssueToken(*user)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println("Token issued successfully!")
	fmt.Printf("User:    %s\n", *user)
	fmt.Printf("Expires: %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Use it as:")
	fmt.Printf("  Authorization: Bearer %s\n", token)
}
