package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/insureai/internal/model"
)

// UpsertFAQ writes FAQ entries with their embeddings. entries and embeddings are parallel.
func (db *DB) UpsertFAQ(ctx context.Context, entries []model.FAQEntry, embeddings []pgvector.Vector) error {
	if len(entries) != len(embeddings) {
		return fmt.Errorf("storage: upsert faq: %d entries but %d embeddings", len(entries), len(embeddings))
	}
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, e := range entries {
			batch.Queue(`INSERT INTO faq_entries (id, question, answer, category, embedding, updated_at)
				VALUES ($1, $2, $3, $4, $5, now())
				ON CONFLICT (id) DO UPDATE SET question = EXCLUDED.question, answer = EXCLUDED.answer,
					category = EXCLUDED.category, embedding = EXCLUDED.embedding, updated_at = now()`,
				e.ID, e.Question, e.Answer, e.Category, embeddings[i])
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("storage: upsert faq: %w", err)
		}
		return nil
	})
}

// SearchFAQ returns the entries closest to embedding by cosine distance.
func (db *DB) SearchFAQ(ctx context.Context, embedding pgvector.Vector, limit int) ([]model.FAQHit, error) {
	if limit <= 0 {
		limit = 2
	}
	rows, err := db.pool.Query(ctx, `
		SELECT id, question, answer, category, (1 - (embedding <=> $1))::float4 AS score
		FROM faq_entries
		ORDER BY embedding <=> $1
		LIMIT $2`, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: search faq: %w", err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.FAQHit, error) {
		var h model.FAQHit
		err := row.Scan(&h.ID, &h.Question, &h.Answer, &h.Category, &h.Score)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan faq hits: %w", err)
	}
	return hits, nil
}

// CountFAQ returns the number of indexed FAQ entries.
func (db *DB) CountFAQ(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM faq_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count faq: %w", err)
	}
	return n, nil
}

// PruneFAQ deletes every entry whose ID is not in keep. It returns the number removed.
func (db *DB) PruneFAQ(ctx context.Context, keep []string) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM faq_entries WHERE NOT (id = ANY($1))`, keep)
	if err != nil {
		return 0, fmt.Errorf("storage: prune faq: %w", err)
	}
	return tag.RowsAffected(), nil
}
