// Package app assembles the InsureAI runtime from configuration. The API
// server, insurectl and the HTTP and MCP tests all build on it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ashita-ai/insureai/internal/authz"
	"github.com/ashita-ai/insureai/internal/config"
	"github.com/ashita-ai/insureai/internal/graph"
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/moderation"
	"github.com/ashita-ai/insureai/internal/search"
	"github.com/ashita-ai/insureai/internal/seed"
	"github.com/ashita-ai/insureai/internal/service/chat"
	"github.com/ashita-ai/insureai/internal/service/embedding"
	"github.com/ashita-ai/insureai/internal/service/report"
	"github.com/ashita-ai/insureai/internal/session"
	"github.com/ashita-ai/insureai/internal/specialist"
	"github.com/ashita-ai/insureai/internal/storage"
	"github.com/ashita-ai/insureai/internal/storage/sqlite"
	"github.com/ashita-ai/insureai/internal/supervisor"
	"github.com/ashita-ai/insureai/internal/tools"
	"github.com/ashita-ai/insureai/migrations"
)

// ownerCacheTTL bounds how long a policy owner lookup is reused.
const ownerCacheTTL = 30 * time.Second

// Store is everything the runtime needs from a record store.
// *storage.DB and *sqlite.Store both satisfy it.
type Store interface {
	tools.Store
	report.Reader
	Ping(ctx context.Context) error
	ListUsers(ctx context.Context, limit int) ([]model.UserSummary, error)
	CountCustomers(ctx context.Context) (int, error)
	LoadDataset(ctx context.Context, ds seed.Dataset) error
	Close() error
}

// OpenStore opens the store named by cfg.Store. Postgres migrations run on open.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := storage.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("app: open postgres: %w", err)
		}
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("app: migrate: %w", err)
		}
		return db, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("app: open sqlite: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("app: unknown store %q", cfg.Store)
	}
}

// SeedIfEmpty loads a generated dataset of n customers when the store has
// none. It reports whether it seeded.
func SeedIfEmpty(ctx context.Context, store Store, n int, logger *slog.Logger) (bool, error) {
	count, err := store.CountCustomers(ctx)
	if err != nil {
		return false, fmt.Errorf("app: count customers: %w", err)
	}
	if count > 0 {
		logger.Info("store already seeded", "customers", count)
		return false, nil
	}
	ds := seed.Generate(seed.Options{Customers: n})
	if err := store.LoadDataset(ctx, ds); err != nil {
		return false, fmt.Errorf("app: seed: %w", err)
	}
	logger.Info("store seeded", "customers", len(ds.Customers), "policies", len(ds.Policies),
		"bills", len(ds.Bills), "claims", len(ds.Claims))
	return true, nil
}

// NewSearcher builds the FAQ backend named by cfg.SearchBackend, loads the
// corpus into it and wraps it with metrics. The returned closer releases the
// backend.
func NewSearcher(ctx context.Context, cfg config.Config, store Store, logger *slog.Logger) (*search.Instrumented, io.Closer, error) {
	var (
		backend search.Searcher
		closer  io.Closer = nopCloser{}
	)

	switch cfg.SearchBackend {
	case search.BackendBleve:
		idx := search.NewBleveIndex(logger)
		backend, closer = idx, idx
	case search.BackendQdrant, search.BackendPgvector:
		embedder, err := embedding.New(embedding.Config{
			Provider:   cfg.EmbeddingProvider,
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.EmbeddingModel,
			URL:        cfg.EmbeddingURL,
			Dimensions: cfg.EmbeddingDimensions,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("app: %w", err)
		}
		logger.Info("embedding provider", "provider", cfg.EmbeddingProvider, "dimensions", embedder.Dimensions())

		if cfg.SearchBackend == search.BackendQdrant {
			idx, err := search.NewQdrantIndex(search.QdrantConfig{
				URL:        cfg.QdrantURL,
				APIKey:     cfg.QdrantAPIKey,
				Collection: cfg.QdrantCollection,
			}, embedder, logger)
			if err != nil {
				return nil, nil, fmt.Errorf("app: qdrant: %w", err)
			}
			backend, closer = idx, idx
			break
		}

		vectors, ok := store.(search.VectorStore)
		if !ok {
			return nil, nil, fmt.Errorf("app: the pgvector backend needs the postgres store")
		}
		backend = search.NewPgvectorIndex(vectors, embedder, logger)
	default:
		return nil, nil, fmt.Errorf("app: unknown search backend %q", cfg.SearchBackend)
	}

	entries, err := search.LoadCorpus(cfg.FAQPath)
	if err != nil {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("app: %w", err)
	}
	if err := backend.Index(ctx, entries); err != nil {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("app: index faq: %w", err)
	}
	logger.Info("faq corpus indexed", "backend", backend.Name(), "entries", len(entries))
	return search.Instrument(backend), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Options tunes the conversation runtime.
type Options struct {
	SessionTTL    time.Duration
	MaxGraphSteps int
}

// Runtime is the assembled conversation stack.
type Runtime struct {
	Sessions *session.Repository
	Graph    *graph.Graph
	Chat     *chat.Service
	Reports  *report.Service

	owners *authz.OwnerCache
}

// NewRuntime wires the tool registry, graph, sessions, moderation, chat and
// report services over store and kb.
func NewRuntime(store Store, kb tools.KnowledgeBase, opts Options, logger *slog.Logger) *Runtime {
	owners := authz.NewOwnerCache(ownerCacheTTL)
	caps := tools.NewCapabilities(store, authz.NewChecker(store, owners), kb)
	g := graph.New(
		supervisor.Rules{},
		specialist.Default(),
		tools.NewInvoker(caps.Registry(), logger),
		graph.WithMaxSteps(opts.MaxGraphSteps),
		graph.WithLogger(logger),
	)
	sessions := session.New(opts.SessionTTL, logger)
	return &Runtime{
		Sessions: sessions,
		Graph:    g,
		Chat:     chat.New(g, sessions, moderation.NewGuard(model.MaxMessageLen, logger), store, logger),
		Reports:  report.New(store, logger),
		owners:   owners,
	}
}

// Close stops the runtime's background sweeps.
func (r *Runtime) Close() {
	r.Sessions.Close()
	r.owners.Close()
}
