package memory

import "time"

// CardKind classifies a structured card.
type CardKind string

const (
	CardFact         CardKind = "fact"
	CardPreference   CardKind = "preference"
	CardEvent        CardKind = "event"
	CardProfile      CardKind = "profile"
	CardRelationship CardKind = "relationship"
	CardGoal         CardKind = "goal"
)

// Relation describes how a card relates to prior versions of its slot.
type Relation string

const (
	// RelationSets is the first value for a slot.
	RelationSets Relation = "sets"
	// RelationUpdates replaces the previous value entirely.
	RelationUpdates Relation = "updates"
	// RelationExtends adds to a multi-valued slot without superseding.
	RelationExtends Relation = "extends"
	// RelationRetracts deactivates the current value without a successor.
	RelationRetracts Relation = "retracts"
)

// Polarity carries sentiment for preference cards.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityNeutral  Polarity = "neutral"
)

// EngineKind identifies which extraction engine produced a card. The set is
// closed: provenance must be exhaustively matchable.
type EngineKind string

const (
	// EngineRules is the pattern-rule extraction engine.
	EngineRules EngineKind = "rules"
	// EngineLLM is reserved for model-based extraction provenance recorded
	// by external tooling. This module never runs it.
	EngineLLM EngineKind = "llm"
)

// Card is a structured fact extracted from text: one entity/slot/value
// triple, independently versioned.
//
// For a given (Scope, VersionKey) at most one card is active at any
// observable instant. Cards are never deleted; superseded cards stay in the
// table with Active=false so the version chain remains queryable.
type Card struct {
	ID    string   `json:"id"`
	Scope string   `json:"scope"`
	Kind  CardKind `json:"kind"`

	Entity string `json:"entity"`
	Slot   string `json:"slot"`
	Value  string `json:"value"`

	Polarity Polarity `json:"polarity"`

	// VersionKey groups versions of the same logical slot ("entity:slot").
	VersionKey string `json:"version_key"`

	// Relation describes how this card relates to its predecessor.
	Relation Relation `json:"relation"`

	// SourceMemoryID references the fact this card was extracted from.
	SourceMemoryID string `json:"source_memory_id"`

	// Engine and EngineVersion record extraction provenance.
	Engine        EngineKind `json:"engine"`
	EngineVersion string     `json:"engine_version"`

	// Confidence is the extraction confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Active reports whether this card is the current value for its
	// version key.
	Active bool `json:"active"`

	// PredecessorID links to the card this one superseded. Empty for the
	// head of a chain.
	PredecessorID string `json:"predecessor_id,omitempty"`

	// EventDate is when the stated fact occurred, if the source text said.
	// Informational only: supersession follows write order.
	EventDate *time.Time `json:"event_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultVersionKey derives the version key from entity and slot.
func (c *Card) DefaultVersionKey() string {
	return c.Entity + ":" + c.Slot
}

// Matches reports whether the card answers an entity/slot lookup.
func (c *Card) Matches(entity, slot string) bool {
	return c.Entity == entity && c.Slot == slot
}
