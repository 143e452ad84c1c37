package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/service/embedding"
)

// VectorStore persists FAQ entries with embeddings. *storage.DB satisfies it.
type VectorStore interface {
	UpsertFAQ(ctx context.Context, entries []model.FAQEntry, embeddings []pgvector.Vector) error
	SearchFAQ(ctx context.Context, embedding pgvector.Vector, limit int) ([]model.FAQHit, error)
	PruneFAQ(ctx context.Context, keep []string) (int64, error)
	CountFAQ(ctx context.Context) (int, error)
}

// PgvectorIndex implements Searcher on the faq_entries table.
type PgvectorIndex struct {
	store    VectorStore
	embedder embedding.Provider
	logger   *slog.Logger
}

// NewPgvectorIndex creates a pgvector-backed index.
func NewPgvectorIndex(store VectorStore, embedder embedding.Provider, logger *slog.Logger) *PgvectorIndex {
	return &PgvectorIndex{store: store, embedder: embedder, logger: logger}
}

// Name returns "pgvector".
func (p *PgvectorIndex) Name() string { return BackendPgvector }

// Index embeds and upserts entries in batches, then prunes entries that
// are no longer in the corpus.
func (p *PgvectorIndex) Index(ctx context.Context, entries []model.FAQEntry) error {
	keep := make([]string, 0, len(entries))
	for start := 0; start < len(entries); start += embedBatchSize {
		chunk := entries[start:min(start+embedBatchSize, len(entries))]
		texts := make([]string, len(chunk))
		for i, e := range chunk {
			texts[i] = document(e)
			keep = append(keep, e.ID)
		}
		vecs, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("search: embed faq batch: %w", err)
		}
		if err := p.store.UpsertFAQ(ctx, chunk, vecs); err != nil {
			return err
		}
	}

	removed, err := p.store.PruneFAQ(ctx, keep)
	if err != nil {
		return err
	}
	p.logger.Info("search: pgvector faq loaded", "entries", len(entries), "pruned", removed)
	return nil
}

// Search embeds query and returns the nearest rows.
func (p *PgvectorIndex) Search(ctx context.Context, query string, limit int) ([]model.FAQHit, error) {
	if limit <= 0 {
		limit = 2
	}
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	hits, err := p.store.SearchFAQ(ctx, vec, limit)
	if err != nil {
		return nil, err
	}
	return Rank(hits, minVectorScore, limit), nil
}

// Healthy reports a store error, or ErrNotIndexed while the table is empty.
func (p *PgvectorIndex) Healthy(ctx context.Context) error {
	n, err := p.store.CountFAQ(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotIndexed
	}
	return nil
}
