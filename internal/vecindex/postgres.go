package vecindex

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"spend-insight/internal/embeddings"
)

// PostgresIndex stores expense vectors in a pgvector table.
type PostgresIndex struct {
	db  *sql.DB
	dim int
}

// NewPostgres opens the index and runs its idempotent migration. dim is
// the embedding dimensionality the table is created with; if the table
// already exists with a different dimensionality, inserts and searches
// will fail, which is treated as a configuration error.
func NewPostgres(dsn string, dim int) (*PostgresIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresIndex{db: db, dim: dim}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresIndex) migrate(ctx context.Context) error {
	// Advisory lock to prevent concurrent migrations from multiple services.
	const lockID = 726144202

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if !acquired {
		// Another service is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}

	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS expense_vectors (
		id TEXT PRIMARY KEY,
		vector vector(%d),
		text TEXT NOT NULL,
		note TEXT NOT NULL,
		amount TEXT NOT NULL,
		spent_on TEXT NOT NULL
	)`, s.dim)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create expense_vectors table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS expense_vectors_vector_idx
		ON expense_vectors USING ivfflat (vector vector_cosine_ops)
		WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

func (s *PostgresIndex) Upsert(ctx context.Context, id string, vector embeddings.Vector, meta Metadata) error {
	if len(vector) != s.dim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), s.dim)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_vectors(id, vector, text, note, amount, spent_on)
		VALUES($1,$2::vector,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			vector=excluded.vector, text=excluded.text,
			note=excluded.note, amount=excluded.amount, spent_on=excluded.spent_on`,
		id, vectorToString(vector), meta.Text, meta.Note, meta.Amount, meta.Date)
	if err != nil {
		return fmt.Errorf("failed to upsert vector %s: %w", id, err)
	}
	return nil
}

func (s *PostgresIndex) Search(ctx context.Context, vector embeddings.Vector, k int) ([]Hit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, note, amount, spent_on,
			1 - (vector <=> $1::vector) as similarity
		FROM expense_vectors
		ORDER BY vector <=> $1::vector
		LIMIT $2
	`, vectorToString(vector), k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()
	return scanHits(rows, true)
}

func (s *PostgresIndex) Peek(ctx context.Context, limit int) ([]Hit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, note, amount, spent_on FROM expense_vectors LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("peek failed: %w", err)
	}
	defer rows.Close()
	return scanHits(rows, false)
}

func scanHits(rows *sql.Rows, withScore bool) ([]Hit, error) {
	var out []Hit
	for rows.Next() {
		var h Hit
		var err error
		if withScore {
			err = rows.Scan(&h.ID, &h.Metadata.Text, &h.Metadata.Note, &h.Metadata.Amount, &h.Metadata.Date, &h.Score)
		} else {
			err = rows.Scan(&h.ID, &h.Metadata.Text, &h.Metadata.Note, &h.Metadata.Amount, &h.Metadata.Date)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// vectorToString converts a Vector ([]float32) to pgvector array format.
// Format: "[0.1,0.2,0.3,...]"
func vectorToString(v embeddings.Vector) string {
	if len(v) == 0 {
		return "[]"
	}
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
