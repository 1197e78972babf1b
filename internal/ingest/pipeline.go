package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"spend-insight/internal/embeddings"
	"spend-insight/internal/records"
	"spend-insight/internal/vecindex"
)

// Pipeline reads expense records, embeds their display text, and
// upserts the vectors into the index. Records are processed one at a
// time; a failure on one record is logged and counted but does not
// abort the run. Upserts are idempotent, so reruns after partial
// failures are safe.
type Pipeline struct {
	log      *slog.Logger
	source   records.Source
	embedder embeddings.Embedder
	index    vecindex.Index
}

// Result reports how many records were embedded and how many failed.
type Result struct {
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

func New(log *slog.Logger, source records.Source, embedder embeddings.Embedder, index vecindex.Index) *Pipeline {
	return &Pipeline{log: log, source: source, embedder: embedder, index: index}
}

// Run ingests every record in the source. A source read failure aborts
// the whole run.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	expenses, err := p.source.ListAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read expense records: %w", err)
	}
	return p.ingest(ctx, expenses), nil
}

// RunIDs ingests only the given record ids, e.g. after a statement import.
func (p *Pipeline) RunIDs(ctx context.Context, ids []string) (Result, error) {
	expenses, err := p.source.ListByIDs(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read expense records: %w", err)
	}
	return p.ingest(ctx, expenses), nil
}

func (p *Pipeline) ingest(ctx context.Context, expenses []records.Expense) Result {
	var res Result
	for _, e := range expenses {
		if err := p.ingestOne(ctx, e); err != nil {
			p.log.Error("failed to ingest expense", "id", e.ID, "err", err)
			res.Failed++
			continue
		}
		res.Embedded++
	}
	p.log.Info("ingestion finished", "embedded", res.Embedded, "failed", res.Failed)
	return res
}

func (p *Pipeline) ingestOne(ctx context.Context, e records.Expense) error {
	text := e.DisplayText()
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	meta := vecindex.Metadata{
		Text:   text,
		Note:   e.Note,
		Amount: e.Amount.StringFixed(2),
		Date:   e.Date.Format(records.DateLayout),
	}
	if err := p.index.Upsert(ctx, e.ID, vec, meta); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}
