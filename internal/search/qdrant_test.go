package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQdrantURL(t *testing.T) {
	type target struct {
		host string
		port int
		tls  bool
	}
	tests := map[string]target{
		"https://faq.cloud.qdrant.io:6333": {"faq.cloud.qdrant.io", 6334, true},
		"https://faq.cloud.qdrant.io:6334": {"faq.cloud.qdrant.io", 6334, true},
		"http://localhost:6333":            {"localhost", 6334, false},
		"http://qdrant.insureai.internal":  {"qdrant.insureai.internal", 6334, false},
		"https://vectors.example.sg:9334":  {"vectors.example.sg", 9334, true},
	}
	for raw, want := range tests {
		t.Run(raw, func(t *testing.T) {
			host, port, tls, err := parseQdrantURL(raw)
			require.NoError(t, err)
			assert.Equal(t, want, target{host, port, tls})
		})
	}

	for _, bad := range []string{"", "qdrant", "http://localhost:grpc"} {
		_, _, _, err := parseQdrantURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewQdrantIndexRejectsBadURL(t *testing.T) {
	_, err := NewQdrantIndex(QdrantConfig{URL: "qdrant", Collection: "insureai_faq"}, nil, nil)
	assert.ErrorContains(t, err, "invalid qdrant URL")
}
