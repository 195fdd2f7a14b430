package domain

import "time"

// Chunk is a bounded span of a document's text with its embedding.
// Chunks are never edited; re-chunking a document replaces the whole set.
type Chunk struct {
	ID         string
	DocumentID string
	Position   int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}
