// seed inserts an admin and a demo user for local testing. Idempotent: skips accounts that already exist.
// Passwords come from SEED_ADMIN_PASSWORD and SEED_USER_PASSWORD; when unset, one is generated and printed.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"storehub/backend/internal/config"
	"storehub/backend/internal/db"
	"storehub/backend/internal/platform/rbac"
	"storehub/backend/internal/security"
	"storehub/backend/internal/user/domain"
	userrepo "storehub/backend/internal/user/repository"
)

type seedAccount struct {
	username    string
	role        rbac.Role
	permissions []rbac.Permission
	passwordEnv string
}

var seedAccounts = []seedAccount{
	{username: "admin", role: rbac.RoleAdmin, passwordEnv: "SEED_ADMIN_PASSWORD"},
	{username: "demo", role: rbac.RoleUser, permissions: []rbac.Permission{rbac.PermAuditRead}, passwordEnv: "SEED_USER_PASSWORD"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	roles := rbac.DefaultRoleTable()
	if cfg.RolePermissionsFile != "" {
		if roles, err = rbac.LoadRoleTable(cfg.RolePermissionsFile); err != nil {
			log.Fatalf("role table: %v", err)
		}
	}

	accounts := userrepo.NewSQLRepository(conn)
	hasher := security.NewHasher(cfg.BcryptCost)
	ctx := context.Background()

	for _, sa := range seedAccounts {
		if !roles.Valid(sa.role) {
			log.Fatalf("seed %s: role %s is not defined in the role table", sa.username, sa.role)
		}
		existing, err := accounts.GetByUsername(ctx, sa.username)
		if err != nil {
			log.Fatalf("seed check %s: %v", sa.username, err)
		}
		if existing != nil {
			log.Printf("Account %q exists. Skipping.", sa.username)
			continue
		}

		password := os.Getenv(sa.passwordEnv)
		generated := password == ""
		if generated {
			if password, err = security.GenerateSecret(18); err != nil {
				log.Fatalf("generate password: %v", err)
			}
		}
		hash, err := hasher.Hash([]byte(password))
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}

		now := time.Now().UTC()
		a := &domain.Account{
			ID:           uuid.NewString(),
			Username:     sa.username,
			PasswordHash: hash,
			Role:         sa.role,
			Permissions:  sa.permissions,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := accounts.Create(ctx, a); err != nil {
			log.Fatalf("create %s: %v", sa.username, err)
		}
		if generated {
			fmt.Printf("%s login: %s / %s\n", sa.role, sa.username, password)
		} else {
			fmt.Printf("%s login: %s (password from %s)\n", sa.role, sa.username, sa.passwordEnv)
		}
	}
	log.Println("Seed completed successfully.")
}
