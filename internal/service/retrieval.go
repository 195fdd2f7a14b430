package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/index"
	"github.com/cloo-solutions/coverdraft/internal/telemetry"
)

// EmbeddingClient generates an embedding vector for text
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkIndex is the read side of the chunk index used by retrieval.
type ChunkIndex interface {
	Snapshot() []index.Entry
	Documents() []*domain.Document
}

// ScoredChunk is a chunk ranked against a query.
type ScoredChunk struct {
	ChunkID      string              `json:"chunk_id"`
	DocumentID   string              `json:"document_id"`
	DocumentType domain.DocumentType `json:"document_type"`
	Filename     string              `json:"filename"`
	Position     int                 `json:"position"`
	Content      string              `json:"content"`
	Similarity   float64             `json:"similarity"`
	Weight       float64             `json:"weight"`
	Score        float64             `json:"score"`

	docSeq uint64
}

// Retriever ranks indexed chunks by similarity times document weight.
type Retriever struct {
	index   ChunkIndex
	client  EmbeddingClient
	weights *WeightCalculator
	topK    int
	timeout time.Duration
}

// NewRetriever creates a Retriever. A non-positive timeout leaves the
// caller's deadline as the only bound.
func NewRetriever(idx ChunkIndex, client EmbeddingClient, weights *WeightCalculator, topK int, timeout time.Duration) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{index: idx, client: client, weights: weights, topK: topK, timeout: timeout}
}

// DefaultTopK is the result count used when a caller passes topK <= 0.
func (r *Retriever) DefaultTopK() int {
	return r.topK
}

// Retrieve returns the topK highest-scoring chunks for the query. An empty
// index yields an empty result without calling the embedder. On cancellation
// any partial result is discarded and the context error is returned.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{Operation: "retrieve"})
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}
	if topK <= 0 {
		topK = r.topK
	}

	snapshot := r.index.Snapshot()
	span.SetData("documents", len(snapshot))
	if len(snapshot) == 0 {
		return []ScoredChunk{}, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	embedding, err := r.client.GenerateEmbedding(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	q := index.Normalize(embedding)

	now := r.weights.Now()
	results := make([]ScoredChunk, 0, len(snapshot))
	for _, entry := range snapshot {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		weight := r.weights.BreakdownAt(entry.Doc, now).Weight
		for _, c := range entry.Chunks {
			sim := index.Cosine(q, c.Embedding)
			results = append(results, ScoredChunk{
				ChunkID:      c.ID,
				DocumentID:   entry.Doc.ID,
				DocumentType: entry.Doc.Type,
				Filename:     entry.Doc.Filename,
				Position:     c.Position,
				Content:      c.Content,
				Similarity:   sim,
				Weight:       weight,
				Score:        sim * weight,
				docSeq:       entry.Seq,
			})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	SortScoredChunks(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SortScoredChunks orders by score, weight and similarity (all descending),
// then by document insertion order and chunk position.
func SortScoredChunks(chunks []ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return rankLess(chunks[i], chunks[j])
	})
}

func rankLess(a, b ScoredChunk) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if a.docSeq != b.docSeq {
		return a.docSeq < b.docSeq
	}
	return a.Position < b.Position
}
