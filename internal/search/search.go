// Package search answers knowledge-search queries from the FAQ corpus.
//
// Three interchangeable backends implement Searcher: an in-memory Bleve
// full-text index (the default), a Qdrant collection and a pgvector table.
// The vector backends embed text through an embedding.Provider. All of them
// are loaded from the same corpus and rebuilt in place by Index.
package search

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/telemetry"
)

// ErrNotIndexed is returned by a backend that has not been loaded yet.
var ErrNotIndexed = errors.New("search: faq index not loaded")

// Backend names accepted by configuration.
const (
	BackendBleve    = "bleve"
	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"
)

// Searcher is a FAQ index. Implementations must be safe for concurrent use.
type Searcher interface {
	// Search returns at most limit entries relevant to query, best first.
	// An empty result means nothing relevant was found.
	Search(ctx context.Context, query string, limit int) ([]model.FAQHit, error)

	// Index replaces the indexed corpus with entries.
	Index(ctx context.Context, entries []model.FAQEntry) error

	// Healthy returns nil if the index is loaded and reachable.
	Healthy(ctx context.Context) error

	// Name returns the backend name.
	Name() string
}

// minVectorScore is the cosine similarity below which a vector hit is noise.
const minVectorScore = 0.15

// embedBatchSize bounds the texts sent to an embedding provider per call.
const embedBatchSize = 100

// Rank sorts hits by descending score, drops those under minScore and
// truncates to limit. Ties keep their input order.
func Rank(hits []model.FAQHit, minScore float32, limit int) []model.FAQHit {
	kept := make([]model.FAQHit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= minScore {
			kept = append(kept, h)
		}
	}
	slices.SortStableFunc(kept, func(a, b model.FAQHit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// document is the text embedded for an entry by the vector backends.
func document(e model.FAQEntry) string {
	return "Question: " + e.Question + "\nAnswer: " + e.Answer
}

// Instrumented wraps a Searcher with search latency and result metrics.
type Instrumented struct {
	Searcher
	searches metric.Int64Counter
	latency  metric.Float64Histogram
}

// Instrument wraps s. The wrapper still satisfies Searcher.
func Instrument(s Searcher) *Instrumented {
	meter := telemetry.Meter("insureai/search")
	searches, _ := meter.Int64Counter("insureai.faq.searches",
		metric.WithDescription("FAQ searches by backend and outcome"),
	)
	latency, _ := meter.Float64Histogram("insureai.faq.search.duration",
		metric.WithDescription("FAQ search latency"),
		metric.WithUnit("ms"),
	)
	return &Instrumented{Searcher: s, searches: searches, latency: latency}
}

// Search delegates to the wrapped backend and records the outcome.
func (i *Instrumented) Search(ctx context.Context, query string, limit int) ([]model.FAQHit, error) {
	start := time.Now()
	hits, err := i.Searcher.Search(ctx, query, limit)

	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case len(hits) == 0:
		outcome = "miss"
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", i.Name()),
		attribute.String("outcome", outcome),
	)
	i.searches.Add(ctx, 1, attrs)
	i.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	return hits, err
}
