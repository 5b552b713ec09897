package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dunamismax/stylizer/internal/domain"
	_ "github.com/lib/pq"
)

const conversionSchemaSQL = `
CREATE TABLE IF NOT EXISTS conversions (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	policy TEXT NOT NULL,
	source_width INTEGER NOT NULL DEFAULT 0,
	source_height INTEGER NOT NULL DEFAULT 0,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	source_bytes INTEGER NOT NULL DEFAULT 0,
	output_bytes INTEGER NOT NULL DEFAULT 0,
	object_key TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresConversionStore struct {
	db *sql.DB
}

func NewPostgresConversionStore(ctx context.Context, dsn string) (*PostgresConversionStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresConversionStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresConversionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, conversionSchemaSQL); err != nil {
		return fmt.Errorf("ensure conversions schema: %w", err)
	}
	return nil
}

func (s *PostgresConversionStore) Close() error {
	return s.db.Close()
}

// Save upserts so a redelivered archive task does not fail on the primary key.
func (s *PostgresConversionStore) Save(ctx context.Context, c domain.Conversion) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO conversions (id, filename, status, error_kind, error_message, policy,
			source_width, source_height, width, height, source_bytes, output_bytes,
			object_key, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			object_key = EXCLUDED.object_key,
			output_bytes = EXCLUDED.output_bytes`,
		c.ID,
		c.Filename,
		c.Status,
		c.ErrorKind,
		c.ErrorMessage,
		c.Policy,
		c.SourceWidth,
		c.SourceHeight,
		c.Width,
		c.Height,
		c.SourceBytes,
		c.OutputBytes,
		c.ObjectKey,
		c.DurationMS,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert conversion: %w", err)
	}
	return nil
}

func (s *PostgresConversionStore) Get(ctx context.Context, id string) (domain.Conversion, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, filename, status, error_kind, error_message, policy,
			source_width, source_height, width, height, source_bytes, output_bytes,
			object_key, duration_ms, created_at
		 FROM conversions
		 WHERE id = $1`,
		id,
	)

	var c domain.Conversion
	if err := row.Scan(
		&c.ID,
		&c.Filename,
		&c.Status,
		&c.ErrorKind,
		&c.ErrorMessage,
		&c.Policy,
		&c.SourceWidth,
		&c.SourceHeight,
		&c.Width,
		&c.Height,
		&c.SourceBytes,
		&c.OutputBytes,
		&c.ObjectKey,
		&c.DurationMS,
		&c.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Conversion{}, false, nil
		}
		return domain.Conversion{}, false, fmt.Errorf("query conversion: %w", err)
	}

	return c, true, nil
}
