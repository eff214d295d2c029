// Command migrate applies the embedded schema migrations and, when
// SEED_ADMIN_PASSWORD is set, creates the first admin account.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"flowershop/backend/internal/config"
	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/httpapi"
	"flowershop/backend/internal/store"
	pgstore "flowershop/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("migrations applied")

	if err := bootstrapAdmin(ctx, pg, os.Getenv("SEED_ADMIN_USERNAME"), os.Getenv("SEED_ADMIN_PASSWORD")); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
}

func bootstrapAdmin(ctx context.Context, users store.UserStore, username string, password string) error {
	if password == "" {
		return nil
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		username = "admin"
	}
	if len(password) < 8 {
		return errors.New("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}

	hash, err := httpapi.HashPassword(password)
	if err != nil {
		return err
	}
	err = users.CreateUser(ctx, domain.UserAccount{
		Username:  username,
		Password:  hash,
		Role:      domain.RoleAdmin,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		log.Printf("admin %q already exists, leaving it unchanged", username)
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("admin %q created", username)
	return nil
}
