package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/pgvector/pgvector-go"
)

// DefaultHashDimensions is the vector size of the hashing provider.
const DefaultHashDimensions = 384

// HashProvider embeds text by feature hashing lower-cased word unigrams and
// bigrams into a fixed-size, L2-normalized vector. It needs no network and
// is deterministic, so texts sharing words land close under cosine distance.
type HashProvider struct {
	dims int
}

// NewHashProvider creates a hashing provider. dims <= 0 uses DefaultHashDimensions.
func NewHashProvider(dims int) *HashProvider {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashProvider{dims: dims}
}

// Dimensions returns the embedding vector size.
func (p *HashProvider) Dimensions() int {
	return p.dims
}

// Embed hashes text into a vector.
func (p *HashProvider) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	return pgvector.NewVector(p.vector(text)), nil
}

// EmbedBatch hashes every text.
func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	vecs := make([]pgvector.Vector, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

func (p *HashProvider) vector(text string) []float32 {
	vec := make([]float32, p.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		p.add(vec, w, 1)
		if i > 0 {
			p.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// add folds feature into vec; one hash bit picks the sign to offset collisions.
func (p *HashProvider) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dims)) //nolint:gosec // dims is positive
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
