// Package main mints a signed token for the admin routes, for operators and
// scripts running the backfill or district maintenance without going through
// the account service.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/martinmuron/prostormat-sub002/config"
	"github.com/martinmuron/prostormat-sub002/internal/auth"
	"github.com/martinmuron/prostormat-sub002/internal/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	email := flag.String("email", "", "operator e-mail put in the token")
	user := flag.String("user", "", "operator user id (random when empty)")
	hours := flag.Int("hours", cfg.JWT.ExpireHours, "token lifetime in hours")
	flag.Parse()

	token, err := mint(cfg.JWT, *user, *email, *hours)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func mint(cfg config.JWTConfig, user, email string, hours int) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}
	if email == "" {
		return "", fmt.Errorf("-email is required")
	}
	id := uuid.New()
	if user != "" {
		parsed, err := uuid.Parse(user)
		if err != nil {
			return "", fmt.Errorf("invalid -user: %w", err)
		}
		id = parsed
	}
	if hours < 1 {
		return "", fmt.Errorf("-hours must be at least 1")
	}
	return auth.NewJWTService(cfg.Secret, cfg.Issuer, hours).Generate(id, email, string(models.RoleAdmin))
}
