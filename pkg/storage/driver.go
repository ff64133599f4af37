// Package storage defines the repository capability for facts, cards and
// enrichment records. Implementations live in subpackages; pkg/storage/sqlite
// is the production driver and pkg/storage/inmemory backs tests.
package storage

import (
	"context"

	"github.com/papercomputeco/recall/pkg/memory"
)

// Driver is the persistence interface for the memory engine. All lookups are
// scoped; no call ever crosses a scope boundary.
type Driver interface {
	// InsertFact stores a new fact. The caller assigns the ID.
	InsertFact(ctx context.Context, fact *memory.Fact) error

	// GetFact retrieves a fact by ID within a scope.
	GetFact(ctx context.Context, scope, id string) (*memory.Fact, error)

	// FindFactByContentHash returns the fact with the given content hash,
	// or a memory.NotFoundError when no such fact exists.
	FindFactByContentHash(ctx context.Context, scope, contentHash string) (*memory.Fact, error)

	// ReinforceFact increments a fact's reinforcement count and bumps its
	// updated_at timestamp. Returns the new count.
	ReinforceFact(ctx context.Context, scope, id string) (int, error)

	// ListFacts returns all facts in a scope, newest first.
	ListFacts(ctx context.Context, scope string) ([]*memory.Fact, error)

	// SearchFactsLexical returns facts whose summary contains at least one
	// of the given terms (case-insensitive substring match), newest first,
	// up to limit. An empty term list returns no results.
	SearchFactsLexical(ctx context.Context, scope string, terms []string, limit int) ([]*memory.Fact, error)

	// UpdateFactEmbedding sets the embedding on a fact that was stored
	// without one.
	UpdateFactEmbedding(ctx context.Context, scope, id string, embedding []float32) error

	// InsertCard stores a new card. When card.Active is true the caller
	// must have ensured no other active card exists for the version key;
	// the schema rejects a second active card with a memory.ConflictError.
	InsertCard(ctx context.Context, card *memory.Card) error

	// GetActiveCard returns the newest active card for (scope, entity,
	// slot), or a memory.NotFoundError when the slot has no active value.
	// Observing more than one active card for a single version key is a
	// memory.DataIntegrityError.
	GetActiveCard(ctx context.Context, scope, entity, slot string) (*memory.Card, error)

	// ListActiveCards returns every active card for (scope, entity, slot),
	// newest first. Multi-valued slots hold one active card per value.
	ListActiveCards(ctx context.Context, scope, entity, slot string) ([]*memory.Card, error)

	// SwapActiveCard atomically deactivates predecessorID and inserts
	// successor as the new active card for its version key. When the
	// predecessor is no longer active (another writer won the race) the
	// transaction rolls back and a memory.ConflictError is returned.
	SwapActiveCard(ctx context.Context, scope, predecessorID string, successor *memory.Card) error

	// RetractActiveCard deactivates the active card for a version key
	// without inserting a successor. Returns the retracted card, or a
	// memory.NotFoundError when nothing was active.
	RetractActiveCard(ctx context.Context, scope, versionKey string) (*memory.Card, error)

	// ListCardHistory returns every card for a version key, newest first,
	// active or not.
	ListCardHistory(ctx context.Context, scope, versionKey string) ([]*memory.Card, error)

	// InsertEnrichment stores an enrichment record. A duplicate
	// (scope, memory_id, engine, engine_version) key is rejected with a
	// memory.ConflictError.
	InsertEnrichment(ctx context.Context, record *memory.EnrichmentRecord) error

	// HasEnrichment reports whether a fact has already been processed by
	// the given engine version.
	HasEnrichment(ctx context.Context, scope, memoryID string, engine memory.EngineKind, engineVersion string) (bool, error)

	// ListEnrichedMemoryIDs returns the IDs of all facts in a scope that
	// the given engine version has processed.
	ListEnrichedMemoryIDs(ctx context.Context, scope string, engine memory.EngineKind, engineVersion string) ([]string, error)

	// Close closes the store and releases any resources.
	Close() error
}
