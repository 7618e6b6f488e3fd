package layouts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/certforge/internal/config"
	"github.com/JonMunkholm/certforge/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS template_layouts (
	id           UUID PRIMARY KEY,
	template_key TEXT NOT NULL UNIQUE,
	config       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const selectColumns = `id, template_key, config, created_at, updated_at`

// OpenPool connects to PostgreSQL with the configured pool limits and
// verifies the connection.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// PostgresStore keeps layouts in the template_layouts table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the layouts table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate template_layouts: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM template_layouts WHERE template_key = $1`, key)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get layout: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM template_layouts ORDER BY template_key`)
	if err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list layouts: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, layout core.StoredLayout) (*Entry, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	data, err := encodeLayout(layout)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO template_layouts (id, template_key, config)
		VALUES ($1, $2, $3)
		ON CONFLICT (template_key)
		DO UPDATE SET config = EXCLUDED.config, updated_at = now()
		RETURNING `+selectColumns, uuid.New(), key, string(data))
	e, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("save layout: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	key, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM template_layouts WHERE template_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete layout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Layout implements core.LayoutSource.
func (s *PostgresStore) Layout(ctx context.Context, key string) ([]byte, error) {
	return rawLayout(ctx, s, key)
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e   Entry
		raw []byte
	)
	if err := row.Scan(&e.ID, &e.Key, &raw, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Config = raw
	return &e, nil
}
