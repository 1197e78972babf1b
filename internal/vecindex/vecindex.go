package vecindex

import (
	"context"

	"spend-insight/internal/embeddings"
)

// Metadata is the per-record payload stored next to the vector so the
// index can answer queries without a join back to the expense table.
// Values stay string-typed on the wire; numeric coercion happens at
// retrieval time.
type Metadata struct {
	Text   string `json:"text"`
	Note   string `json:"note"`
	Amount string `json:"amount"`
	Date   string `json:"date"`
}

// Hit is a single similarity search result.
type Hit struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Index is the vector index contract. Upsert is idempotent: writing the
// same id again overwrites the previous vector and metadata as a unit.
type Index interface {
	Upsert(ctx context.Context, id string, vector embeddings.Vector, meta Metadata) error
	Search(ctx context.Context, vector embeddings.Vector, k int) ([]Hit, error)
	// Peek returns up to limit entries for diagnostics; no ordering guarantee.
	Peek(ctx context.Context, limit int) ([]Hit, error)
}
