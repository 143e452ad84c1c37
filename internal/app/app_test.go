package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/insureai/internal/app"
	"github.com/ashita-ai/insureai/internal/config"
	"github.com/ashita-ai/insureai/internal/search"
	"github.com/ashita-ai/insureai/internal/testutil"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Store:         config.StoreSQLite,
		SQLitePath:    filepath.Join(t.TempDir(), "insureai.db"),
		SearchBackend: search.BackendBleve,
	}
}

func TestOpenStoreAndSeed(t *testing.T) {
	ctx := context.Background()
	logger := testutil.TestLogger()

	store, err := app.OpenStore(ctx, sqliteConfig(t), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	seeded, err := app.SeedIfEmpty(ctx, store, 50, logger)
	require.NoError(t, err)
	assert.True(t, seeded)

	n, err := store.CountCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	seeded, err = app.SeedIfEmpty(ctx, store, 50, logger)
	require.NoError(t, err)
	assert.False(t, seeded, "a populated store is left alone")

	_, err = app.OpenStore(ctx, config.Config{Store: "mongo"}, logger)
	assert.ErrorContains(t, err, "unknown store")
}

func TestNewSearcher(t *testing.T) {
	ctx := context.Background()
	logger := testutil.TestLogger()
	store := testutil.SeededSQLite(t)

	s, closer, err := app.NewSearcher(ctx, sqliteConfig(t), store, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })
	assert.Equal(t, search.BackendBleve, s.Name())
	require.NoError(t, s.Healthy(ctx))

	hits, err := s.Search(ctx, "MediShield Life", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"unknown backend", func(c *config.Config) { c.SearchBackend = "solr" }, "unknown search backend"},
		{"pgvector on sqlite", func(c *config.Config) { c.SearchBackend = search.BackendPgvector }, "postgres store"},
		{"bad embedder", func(c *config.Config) {
			c.SearchBackend = search.BackendPgvector
			c.EmbeddingProvider = "word2vec"
		}, "unknown provider"},
		{"missing corpus", func(c *config.Config) { c.FAQPath = filepath.Join(t.TempDir(), "none.yaml") }, "corpus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := sqliteConfig(t)
			tt.mutate(&cfg)
			_, _, err := app.NewSearcher(ctx, cfg, store, logger)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRuntimeLogin(t *testing.T) {
	ctx := context.Background()
	logger := testutil.TestLogger()
	store := testutil.SeededSQLite(t)

	kb, closer, err := app.NewSearcher(ctx, sqliteConfig(t), store, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	rt := app.NewRuntime(store, kb, app.Options{}, logger)
	t.Cleanup(rt.Close)

	login, err := rt.Chat.Login(ctx, testutil.Dataset().Customers[41].Email)
	require.NoError(t, err)
	assert.Equal(t, "CUST00042", login.CustomerID)

	resp, err := rt.Chat.Send(ctx, login.SessionID, "What is MediShield Life?")
	require.NoError(t, err)
	assert.Equal(t, "FAQ Agent", resp.AgentName)
	assert.Contains(t, resp.AIMessage, "MediShield Life")
}
