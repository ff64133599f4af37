package memory

import "time"

// EnrichmentRecord is the bookkeeping row proving that one engine version
// has processed one fact. Records are append-only: a changed engine version
// produces a new record rather than mutating the old one, so provenance
// survives reprocessing.
//
// Unique on (Scope, MemoryID, Engine, EngineVersion), the idempotency key
// the write path uses to skip work it has already done.
type EnrichmentRecord struct {
	ID     string `json:"id"`
	Scope  string `json:"scope"`

	// MemoryID is the fact that was processed.
	MemoryID string `json:"memory_id"`

	Engine        EngineKind `json:"engine"`
	EngineVersion string     `json:"engine_version"`

	// Success reports whether extraction completed. Failed runs still
	// count as attempted so a consistently failing fact is not retried
	// forever under the same engine version.
	Success bool `json:"success"`

	// CardIDs are the cards this run produced.
	CardIDs []string `json:"card_ids,omitempty"`

	// ErrorMessage carries the failure reason when Success is false.
	ErrorMessage string `json:"error_message,omitempty"`

	EnrichedAt time.Time `json:"enriched_at"`
}
