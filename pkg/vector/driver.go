// Package vector provides interfaces and implementations for vector storage
// and similarity search over fact embeddings.
package vector

import "context"

// Document represents a stored item with its embedding.
type Document struct {
	// ID is a unique identifier for the document (the fact ID).
	ID string

	// Scope is the tenant partition the document belongs to. Queries never
	// cross scopes.
	Scope string

	// Content is the fact summary, kept alongside the embedding so results
	// are usable without a second lookup.
	Content string

	// Embedding is the vector representation of the content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is the cosine similarity (higher = more similar).
	Score float32
}

// VectorDriver handles storage and retrieval of vector embeddings.
type VectorDriver interface {
	// Add stores documents with their embeddings. If a document with the
	// same ID already exists in the scope, implementers should update it.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding
	// within one scope. Asking for more results than the scope holds
	// returns everything it holds.
	Query(ctx context.Context, scope string, embedding []float32, topK int) ([]QueryResult, error)

	// Delete removes documents by their IDs within one scope.
	Delete(ctx context.Context, scope string, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
