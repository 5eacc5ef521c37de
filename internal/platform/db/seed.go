package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kpireview/internal/domain/auth"
	"kpireview/internal/platform/config"
)

// Seed creates the bootstrap admin account when configured. Everything else
// (departments, templates, evaluations) is created through the API.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.SeedAdminEmail == "" || cfg.SeedAdminPassword == "" {
		return nil
	}
	return ensureAdminUser(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, adminEmail, adminPassword string) error {
	var existing string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", adminEmail).Scan(&existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}

	var userID string
	if err := pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role, active)
		VALUES ($1, $2, $3, true)
		RETURNING id
	`, adminEmail, hash, auth.RoleAdmin).Scan(&userID); err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO employees (user_id, name, active)
		VALUES ($1, 'Administrator', true)
	`, userID)
	return err
}
