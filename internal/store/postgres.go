package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

const createFavoritesTable = `
	CREATE TABLE IF NOT EXISTS favorites (
		profile    TEXT             NOT NULL,
		position   INTEGER          NOT NULL,
		name       TEXT             NOT NULL,
		admin1     TEXT             NOT NULL DEFAULT '',
		country    TEXT             NOT NULL DEFAULT '',
		latitude   DOUBLE PRECISION NOT NULL,
		longitude  DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ      NOT NULL DEFAULT now(),
		PRIMARY KEY (profile, position)
	)
`

// PostgresBackend stores favorites in PostgreSQL via a pgx pool.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend connects to dsn and ensures the favorites table exists.
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, createFavoritesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create favorites table: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

// Load implements Backend.
func (b *PostgresBackend) Load(ctx context.Context, profile string) ([]models.Location, error) {
	query := `
		SELECT name, admin1, country, latitude, longitude
		FROM favorites
		WHERE profile = $1
		ORDER BY position ASC
	`
	rows, err := b.pool.Query(ctx, query, profile)
	if err != nil {
		return nil, fmt.Errorf("postgres: query favorites: %w", err)
	}
	defer rows.Close()

	var out []models.Location
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.Name, &loc.Admin1, &loc.Country, &loc.Latitude, &loc.Longitude); err != nil {
			return nil, fmt.Errorf("postgres: scan favorite row: %w", err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read favorites: %w", err)
	}
	return out, nil
}

// Replace implements Backend. The delete and inserts share one transaction.
func (b *PostgresBackend) Replace(ctx context.Context, profile string, locations []models.Location) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM favorites WHERE profile = $1`, profile); err != nil {
		return fmt.Errorf("postgres: clear favorites: %w", err)
	}

	batch := &pgx.Batch{}
	for i, loc := range locations {
		batch.Queue(`
			INSERT INTO favorites (profile, position, name, admin1, country, latitude, longitude)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, profile, i, loc.Name, loc.Admin1, loc.Country, loc.Latitude, loc.Longitude)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: insert favorites: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Ping implements Backend.
func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Close implements Backend.
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

// Name implements Backend.
func (b *PostgresBackend) Name() string { return "postgres" }
