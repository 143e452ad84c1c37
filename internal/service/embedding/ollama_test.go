package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaServer(t *testing.T, dims int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = float32(i) * 0.001
		}
		// The first component encodes the prompt length so batch order is checkable.
		vec[0] = float32(len(req.Prompt))
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestOllamaProvider(t *testing.T) {
	server, calls := ollamaServer(t, 768)
	p := NewOllamaProvider(server.URL, "nomic-embed-text", 768)
	assert.Equal(t, 768, p.Dimensions())

	t.Run("embed single", func(t *testing.T) {
		vec, err := p.Embed(context.Background(), "What is NCD?")
		require.NoError(t, err)
		slice := vec.Slice()
		require.Len(t, slice, 768)
		assert.Equal(t, float32(len("What is NCD?")), slice[0])
		assert.InDelta(t, 0.1, slice[100], 1e-6)
	})

	t.Run("embed batch keeps order", func(t *testing.T) {
		calls.Store(0)
		texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff"}
		vecs, err := p.EmbedBatch(context.Background(), texts)
		require.NoError(t, err)
		require.Len(t, vecs, len(texts))
		for i, v := range vecs {
			assert.Equal(t, float32(len(texts[i])), v.Slice()[0])
		}
		assert.Equal(t, int32(len(texts)), calls.Load())
	})

	t.Run("embed batch empty", func(t *testing.T) {
		vecs, err := p.EmbedBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, vecs)
	})
}

func TestOllamaProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}},
		{"empty embedding", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{})
		}},
		{"invalid json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"dimension mismatch", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: make([]float32, 3)})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p := NewOllamaProvider(server.URL, "test-model", 768)
			_, err := p.Embed(context.Background(), "test")
			require.Error(t, err)

			_, err = p.EmbedBatch(context.Background(), []string{"a", "b"})
			assert.Error(t, err)
		})
	}
}
