package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/ashita-ai/insureai/internal/model"
)

// questionBoost weights question matches over answer matches.
const questionBoost = 2.0

// BleveIndex is an in-memory full-text FAQ index. Index builds a fresh
// index and swaps it in, so searches never see a half-loaded corpus.
type BleveIndex struct {
	logger *slog.Logger

	mu      sync.RWMutex
	index   bleve.Index
	entries map[string]model.FAQEntry
}

// NewBleveIndex creates an empty index. Call Index before searching.
func NewBleveIndex(logger *slog.Logger) *BleveIndex {
	return &BleveIndex{logger: logger}
}

type bleveDoc struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

func faqMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false

	keyword := bleve.NewKeywordFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("question", text)
	doc.AddFieldMappingsAt("answer", text)
	doc.AddFieldMappingsAt("category", keyword)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Name returns "bleve".
func (b *BleveIndex) Name() string { return BackendBleve }

// Index builds a new in-memory index from entries and replaces the current one.
func (b *BleveIndex) Index(_ context.Context, entries []model.FAQEntry) error {
	idx, err := bleve.NewMemOnly(faqMapping())
	if err != nil {
		return fmt.Errorf("search: create bleve index: %w", err)
	}

	byID := make(map[string]model.FAQEntry, len(entries))
	batch := idx.NewBatch()
	for _, e := range entries {
		if err := batch.Index(e.ID, bleveDoc{Question: e.Question, Answer: e.Answer, Category: e.Category}); err != nil {
			_ = idx.Close()
			return fmt.Errorf("search: bleve index %s: %w", e.ID, err)
		}
		byID[e.ID] = e
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("search: bleve batch: %w", err)
	}

	b.mu.Lock()
	old := b.index
	b.index, b.entries = idx, byID
	b.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			b.logger.Warn("search: close previous bleve index", "error", err)
		}
	}
	b.logger.Info("search: bleve index loaded", "entries", len(entries))
	return nil
}

// Search runs a match query over questions and answers.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]model.FAQHit, error) {
	query = strings.TrimSpace(query)
	if limit <= 0 {
		limit = 2
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, ErrNotIndexed
	}
	if query == "" {
		return nil, nil
	}

	onQuestion := bleve.NewMatchQuery(query)
	onQuestion.SetField("question")
	onQuestion.SetBoost(questionBoost)
	onAnswer := bleve.NewMatchQuery(query)
	onAnswer.SetField("answer")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(onQuestion, onAnswer))
	req.Size = limit

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: bleve query: %w", err)
	}

	hits := make([]model.FAQHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		e, ok := b.entries[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, model.FAQHit{FAQEntry: e, Score: float32(h.Score)})
	}
	return hits, nil
}

// Healthy reports ErrNotIndexed until the first successful Index.
func (b *BleveIndex) Healthy(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return ErrNotIndexed
	}
	return nil
}

// Close releases the current index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index, b.entries = nil, nil
	return err
}
