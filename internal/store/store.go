package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Store keeps provider embeddings in Postgres so repeated texts skip the
// provider round trip.
type Store struct {
	pool *pgxpool.Pool
}

// EmbeddingStore defines the methods that the Store must implement.
type EmbeddingStore interface {
	Migrate(ctx context.Context, dim int) error
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, key, model string, vec []float32) error
	Ping(ctx context.Context) error
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate creates the embeddings table for vectors of length dim.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	if dim < 1 {
		return fmt.Errorf("embedding cache needs a fixed dimension, got %d", dim)
	}
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS embeddings (
  key        TEXT PRIMARY KEY,
  model      TEXT NOT NULL,
  vec        vector(%d) NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
  used_at    TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS embeddings_model_idx
  ON embeddings (model);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim))
	return err
}

// GetEmbedding returns the cached vector for key, if any.
func (s *Store) GetEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	const q = `
      UPDATE embeddings SET used_at = now()
      WHERE key = $1
      RETURNING vec`
	var v pgvector.Vector
	if err := s.pool.QueryRow(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v.Slice(), true, nil
}

// PutEmbedding stores vec under key. An existing row is left alone since
// identical keys always carry identical vectors.
func (s *Store) PutEmbedding(ctx context.Context, key, model string, vec []float32) error {
	const q = `
		INSERT INTO embeddings (key, model, vec, created_at, used_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (key) DO NOTHING;`

	_, err := s.pool.Exec(ctx, q, key, model, pgvector.NewVector(vec))
	return err
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
