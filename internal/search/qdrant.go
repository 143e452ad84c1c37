package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/service/embedding"
)

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
}

// QdrantIndex implements Searcher backed by a Qdrant collection. Each FAQ
// entry is one point whose payload carries the entry itself.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	embedder   embedding.Provider
	logger     *slog.Logger

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error (pointer-to-error, never nil pointer; inner error may be nil)
	healthAt    atomic.Int64 // unix nanos of last check
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("search: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	port = 6334
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("search: invalid port in qdrant URL: %q", portStr)
		}
		// The REST port maps to the gRPC port.
		if p != 6333 {
			port = p
		}
	}
	return host, port, useTLS, nil
}

// NewQdrantIndex connects to Qdrant over gRPC. Vectors are sized by embedder.
func NewQdrantIndex(cfg QdrantConfig, embedder embedding.Provider, logger *slog.Logger) (*QdrantIndex, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("search: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// Name returns "qdrant".
func (q *QdrantIndex) Name() string { return BackendQdrant }

// EnsureCollection creates the collection if it doesn't already exist and
// ensures the category payload index is present. CreateFieldIndex is
// idempotent on Qdrant.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("search: check collection exists: %w", err)
	}

	if !exists {
		dims := uint64(q.embedder.Dimensions()) //nolint:gosec // positive by construction
		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dims,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("search: create collection %q: %w", q.collection, err)
		}
		q.logger.Info("qdrant: created collection", "collection", q.collection, "dims", dims)
	}

	keywordType := qdrant.FieldType_FieldTypeKeyword
	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "category",
		FieldType:      &keywordType,
	}); err != nil {
		return fmt.Errorf("search: ensure index on category: %w", err)
	}
	return nil
}

// Index upserts every entry and deletes points for entries no longer in the corpus.
func (q *QdrantIndex) Index(ctx context.Context, entries []model.FAQEntry) error {
	if err := q.EnsureCollection(ctx); err != nil {
		return err
	}

	keep := make([]*qdrant.PointId, 0, len(entries))
	for start := 0; start < len(entries); start += embedBatchSize {
		chunk := entries[start:min(start+embedBatchSize, len(entries))]
		texts := make([]string, len(chunk))
		for i, e := range chunk {
			texts[i] = document(e)
		}
		vecs, err := q.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("search: embed faq batch: %w", err)
		}

		points := make([]*qdrant.PointStruct, len(chunk))
		for i, e := range chunk {
			id, err := PointID(e.ID)
			if err != nil {
				return err
			}
			pid := qdrant.NewID(id.String())
			keep = append(keep, pid)
			points[i] = &qdrant.PointStruct{
				Id:      pid,
				Vectors: qdrant.NewVectorsDense(vecs[i].Slice()),
				Payload: qdrant.NewValueMap(map[string]any{
					"faq_id":   e.ID,
					"question": e.Question,
					"answer":   e.Answer,
					"category": e.Category,
				}),
			}
		}
		if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return fmt.Errorf("search: qdrant upsert %d points: %w", len(points), err)
		}
	}

	if _, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{MustNot: []*qdrant.Condition{qdrant.NewHasID(keep...)}},
			},
		},
	}); err != nil {
		return fmt.Errorf("search: qdrant prune stale points: %w", err)
	}

	q.logger.Info("qdrant: faq collection loaded", "collection", q.collection, "entries", len(entries))
	return nil
}

// Search embeds query and returns the nearest entries from their payloads.
func (q *QdrantIndex) Search(ctx context.Context, query string, limit int) ([]model.FAQHit, error) {
	if limit <= 0 {
		limit = 2
	}
	vec, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	fetch := uint64(limit) //nolint:gosec // positive
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec.Slice()),
		Limit:          &fetch,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search: qdrant query: %w", err)
	}

	hits := make([]model.FAQHit, 0, len(scored))
	for _, sp := range scored {
		p := sp.GetPayload()
		e := model.FAQEntry{
			ID:       p["faq_id"].GetStringValue(),
			Question: p["question"].GetStringValue(),
			Answer:   p["answer"].GetStringValue(),
			Category: p["category"].GetStringValue(),
		}
		if e.Question == "" {
			q.logger.Warn("qdrant: point without faq payload", "id", sp.GetId().GetUuid())
			continue
		}
		hits = append(hits, model.FAQHit{FAQEntry: e, Score: sp.GetScore()})
	}
	return Rank(hits, minVectorScore, limit), nil
}

// Healthy returns nil if Qdrant is reachable. Results are cached for 5 seconds
// and concurrent checks after expiry share one gRPC call.
func (q *QdrantIndex) Healthy(_ context.Context) error {
	if time.Since(time.Unix(0, q.healthAt.Load())) < 5*time.Second {
		return q.loadHealthErr()
	}

	// singleflight hands every waiter the first caller's result, so the check
	// runs on its own context rather than a caller's that may be cancelled.
	result, _, _ := q.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if _, err := q.client.HealthCheck(checkCtx); err != nil {
			q.storeHealthErr(fmt.Errorf("search: qdrant unhealthy: %w", err))
		} else {
			q.storeHealthErr(nil)
		}
		q.healthAt.Store(time.Now().UnixNano())
		return q.loadHealthErr(), nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

// atomic.Value cannot hold a nil interface, so the error is boxed.
func (q *QdrantIndex) storeHealthErr(err error) {
	q.healthErr.Store(&err)
}

func (q *QdrantIndex) loadHealthErr() error {
	v := q.healthErr.Load()
	if v == nil {
		return nil
	}
	return *v.(*error)
}

// Close shuts down the Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
