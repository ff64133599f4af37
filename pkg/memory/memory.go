// Package memory defines the domain model for the recall engine.
//
// A [Fact] is a stored, utterance-derived memory scoped to one tenant. A
// [Card] is a structured entity/slot/value triple extracted from a fact and
// versioned independently. An [EnrichmentRecord] tracks which extraction
// engine versions have already processed which facts, making enrichment
// idempotent and incremental.
package memory

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind classifies a stored memory fact.
type Kind string

const (
	KindEpisodic   Kind = "episodic"
	KindSemantic   Kind = "semantic"
	KindProcedural Kind = "procedural"
	KindProfile    Kind = "profile"
)

// Fact is a stored utterance-derived memory.
//
// Exact duplicates, meaning same (Scope, ContentHash), are never inserted twice;
// the existing row's ReinforcementCount is incremented instead.
type Fact struct {
	// ID is a ULID assigned on insert.
	ID string `json:"id"`

	// Scope is the tenant/user partition key. All lookups are scoped.
	Scope string `json:"scope"`

	// Kind classifies the memory.
	Kind Kind `json:"kind"`

	// Summary is the text content of the memory.
	Summary string `json:"summary"`

	// Embedding is the vector representation of Summary. May be nil when
	// the embedding provider was unavailable at store time; backfill
	// repairs it later.
	Embedding []float32 `json:"embedding,omitempty"`

	// ContentHash is the exact-duplicate key: sha256 over kind and summary.
	ContentHash string `json:"content_hash"`

	// ReinforcementCount is incremented each time the identical content is
	// re-observed.
	ReinforcementCount int `json:"reinforcement_count"`

	// HappenedAt is when the remembered event occurred, as reported by the
	// caller (not when it was recorded).
	HappenedAt time.Time `json:"happened_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewID returns a fresh ULID string for facts, cards and enrichment records.
func NewID() string {
	return ulid.Make().String()
}
