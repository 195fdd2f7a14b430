package llm

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// HashEmbedderName identifies the local feature-hashing embedder
const HashEmbedderName = "hash"

var hashTokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// HashEmbedder maps text to a fixed-size vector by hashing unigrams and
// bigrams into signed buckets. It needs no network access and is
// deterministic, which makes it usable offline and in tests.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a HashEmbedder; non-positive dimensions default to 256
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{dimension: dimension}
}

// Dimension returns the length of produced vectors
func (e *HashEmbedder) Dimension() int { return e.dimension }

// GenerateEmbedding returns the L2-normalized hashed feature vector of text
func (e *HashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := hashTokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return nil, errors.New("text has no tokens to embed")
	}

	vec := make([]float64, e.dimension)
	add := func(feature string, weight float64) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dimension))
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		vec[bucket] += weight
	}
	for i, tok := range tokens {
		add(tok, 1)
		if i > 0 {
			add(tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, e.dimension)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}
