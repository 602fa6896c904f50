package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the tables if needed. Having the migration in code
// keeps the stack self-contained so docker-compose can bootstrap everything.
// The UNIQUE constraint on finger_print_signature is the authoritative guard
// against duplicate identity ingestion.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS file_uploads (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	object_key TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_uploads_status ON file_uploads(status);
CREATE TABLE IF NOT EXISTS user_records (
	id BIGSERIAL PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	national_id TEXT NOT NULL,
	birth_date DATE NOT NULL,
	address TEXT NOT NULL,
	country TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	email TEXT NOT NULL,
	finger_print_signature TEXT NOT NULL UNIQUE,
	time_added TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_records_names ON user_records(first_name, last_name);
CREATE INDEX IF NOT EXISTS idx_user_records_birth_date ON user_records(birth_date);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
