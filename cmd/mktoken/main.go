package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/token"
)

func main() {
	secret := flag.String("secret", "konnekt-dev-secret", "Token signing secret (must match the server's TOKEN_SECRET)")
	userIDStr := flag.String("user", "", "User UUID (generated when omitted)")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	userID := uuid.New()
	if *userIDStr != "" {
		parsed, err := uuid.Parse(*userIDStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid user UUID: %v\n", err)
			os.Exit(1)
		}
		userID = parsed
	}

	signed, err := token.NewVerifier(*secret, *ttl).Mint(userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to mint token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User:  %s\n", userID)
	fmt.Printf("Token: %s\n", signed)
	fmt.Printf("Authorization: Bearer %s\n", signed)
}
