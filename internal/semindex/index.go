// Package semindex defines the embedding index used to find earlier notes
// semantically related to a new one.
package semindex

import (
	"context"
	"math"
	"time"
)

// Entry is one indexed note.
type Entry struct {
	// Path is the vault-relative note path and the entry's identity: adding
	// an entry with an existing path replaces it.
	Path string `json:"path"`

	// Title is a display name for the note.
	Title string `json:"title"`

	// Embedding is the note's embedding vector.
	Embedding []float32 `json:"embedding"`

	// CreatedAt is when the note was indexed.
	CreatedAt time.Time `json:"created_at"`
}

// Result is a search hit with its cosine similarity to the query vector.
type Result struct {
	Entry
	Similarity float64
}

// Index stores note embeddings and answers nearest-neighbour queries.
// Implementations must be safe for concurrent use.
type Index interface {
	// Add upserts an entry.
	Add(ctx context.Context, entry Entry) error

	// Search returns up to topK entries with cosine similarity of at least
	// minSimilarity to the query embedding, most similar first.
	Search(ctx context.Context, embedding []float32, topK int, minSimilarity float64) ([]Result, error)

	// Close releases backend resources.
	Close() error
}

// CosineSimilarity computes the cosine similarity of two vectors. Vectors of
// different lengths or with zero magnitude yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
