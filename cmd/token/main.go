// Command token mints a bearer token for the API, signed with AUTH_JWT_SECRET.
//
//	go run ./cmd/token -subject ops@example.com -ttl 8h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kursadbilgin/purchase-notifier/internal/auth"
	"github.com/kursadbilgin/purchase-notifier/internal/config"
)

func main() {
	subject := flag.String("subject", "", "Token subject, e.g. the operator or client name")
	ttl := flag.Duration("ttl", 0, "Token lifetime (defaults to AUTH_TOKEN_TTL)")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "Error: -subject is required.")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadAuth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	lifetime := cfg.AuthTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	tokens, err := auth.NewTokenManager([]byte(cfg.AuthJWTSecret), lifetime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating token manager: %v\n", err)
		os.Exit(1)
	}

	token, err := tokens.Generate(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Token for %s expires at %s\n", *subject, time.Now().Add(lifetime).UTC().Format(time.RFC3339))
	fmt.Println(token)
}
