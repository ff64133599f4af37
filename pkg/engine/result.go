package engine

import "github.com/papercomputeco/recall/pkg/memory"

// Source names the retrieval channel that produced a result.
type Source string

const (
	// SourceCard means an authoritative structured card answered the query.
	SourceCard Source = "card"
	// SourceVector means semantic similarity search found the fact.
	SourceVector Source = "vector"
	// SourceLexical means expanded keyword search found the fact.
	SourceLexical Source = "lexical"
)

// Result is one fused retrieval candidate.
type Result struct {
	// Fact is the underlying memory. Always set.
	Fact *memory.Fact `json:"fact"`

	// Card is set when an authoritative card produced or annotated this
	// result.
	Card *memory.Card `json:"card,omitempty"`

	// Score is the salience used for ranking. Authoritative results are
	// pinned ahead of score order.
	Score float64 `json:"score"`

	// Authoritative marks results pinned by structured card lookup.
	Authoritative bool `json:"authoritative"`

	// Sources lists every channel that surfaced this fact.
	Sources []Source `json:"sources"`
}
