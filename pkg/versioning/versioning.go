// Package versioning applies extracted card drafts to the version chains in
// storage. It decides each draft's relation to the current state of its slot
// and performs the atomic transitions; write order, not the remembered
// event's date, decides which value wins a conflict.
package versioning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/storage"
)

// Config holds configuration for the applier.
type Config struct {
	// MultiValuedSlots names the "entity:slot" keys that accumulate values
	// instead of superseding them. Nil means DefaultMultiValuedSlots.
	MultiValuedSlots []string
}

// DefaultMultiValuedSlots returns the built-in multi-valued slot set.
// Preferences accumulate: liking tea does not supersede liking coffee.
func DefaultMultiValuedSlots() []string {
	return []string{"user:preference"}
}

// Applier applies card drafts against storage.
type Applier struct {
	store       storage.Driver
	multiValued map[string]bool
	logger      *zap.Logger
}

// NewApplier creates an applier.
func NewApplier(store storage.Driver, cfg Config, logger *zap.Logger) *Applier {
	slots := cfg.MultiValuedSlots
	if slots == nil {
		slots = DefaultMultiValuedSlots()
	}

	multiValued := make(map[string]bool, len(slots))
	for _, slot := range slots {
		multiValued[slot] = true
	}

	return &Applier{store: store, multiValued: multiValued, logger: logger}
}

// Apply writes one card draft into its version chain and returns the stored
// card. A draft whose slot already holds the same value is a no-op returning
// the existing card. A lost supersession race is retried once behind the
// winner; losing twice surfaces the memory.ConflictError.
//
// The slot configuration overrides the draft's relation: any non-retracting
// draft targeting a configured multi-valued slot accumulates under a
// value-keyed chain, even when the draft says Sets or Updates.
func (a *Applier) Apply(ctx context.Context, draft memory.Card) (*memory.Card, error) {
	if draft.Entity == "" || draft.Slot == "" {
		return nil, fmt.Errorf("card draft needs entity and slot")
	}

	if draft.VersionKey == "" {
		draft.VersionKey = draft.DefaultVersionKey()
	}

	if draft.Relation == memory.RelationRetracts {
		return a.retract(ctx, draft)
	}

	if a.multiValued[draft.DefaultVersionKey()] {
		return a.applyExtend(ctx, draft)
	}

	return a.applySupersede(ctx, draft)
}

// applyExtend gives each value its own version chain under a value-suffixed
// key, so many values stay active for the slot while the single-active
// invariant holds per chain.
func (a *Applier) applyExtend(ctx context.Context, draft memory.Card) (*memory.Card, error) {
	draft.Relation = memory.RelationExtends
	draft.VersionKey = draft.DefaultVersionKey() + ":" + valueFingerprint(draft.Value)

	history, err := a.store.ListCardHistory(ctx, draft.Scope, draft.VersionKey)
	if err != nil {
		return nil, fmt.Errorf("reading card history: %w", err)
	}
	for _, existing := range history {
		if existing.Active {
			return existing, nil
		}
	}

	card := a.finalize(draft)

	err = a.store.InsertCard(ctx, &card)
	if memory.IsConflict(err) {
		// Another writer landed the same value first
		return a.activeByVersionKey(ctx, draft.Scope, draft.VersionKey)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting card: %w", err)
	}

	return &card, nil
}

// applySupersede sets the first value for a slot or atomically swaps the
// current one out.
func (a *Applier) applySupersede(ctx context.Context, draft memory.Card) (*memory.Card, error) {
	for attempt := 0; ; attempt++ {
		current, err := a.store.GetActiveCard(ctx, draft.Scope, draft.Entity, draft.Slot)
		if err != nil && !memory.IsNotFound(err) {
			return nil, fmt.Errorf("reading active card: %w", err)
		}

		if current == nil {
			card := draft
			card.Relation = memory.RelationSets
			card = a.finalize(card)

			err = a.store.InsertCard(ctx, &card)
			if memory.IsConflict(err) && attempt == 0 {
				// Lost the race to set first; re-chain behind the winner
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("inserting card: %w", err)
			}

			return &card, nil
		}

		if current.Value == draft.Value {
			return current, nil
		}

		card := draft
		card.Relation = memory.RelationUpdates
		card.PredecessorID = current.ID
		card = a.finalize(card)

		err = a.store.SwapActiveCard(ctx, draft.Scope, current.ID, &card)
		if memory.IsConflict(err) && attempt == 0 {
			a.logger.Debug("card swap lost race, retrying behind winner",
				zap.String("scope", draft.Scope),
				zap.String("version_key", draft.VersionKey),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("swapping active card: %w", err)
		}

		return &card, nil
	}
}

// retract deactivates the slot's current value without a successor.
func (a *Applier) retract(ctx context.Context, draft memory.Card) (*memory.Card, error) {
	card, err := a.store.RetractActiveCard(ctx, draft.Scope, draft.VersionKey)
	if err != nil {
		return nil, fmt.Errorf("retracting card: %w", err)
	}

	return card, nil
}

// Retract deactivates the active card for an entity/slot.
func (a *Applier) Retract(ctx context.Context, scope, entity, slot string) (*memory.Card, error) {
	return a.retract(ctx, memory.Card{
		Scope:      scope,
		Entity:     entity,
		Slot:       slot,
		VersionKey: entity + ":" + slot,
		Relation:   memory.RelationRetracts,
	})
}

func (a *Applier) activeByVersionKey(ctx context.Context, scope, versionKey string) (*memory.Card, error) {
	history, err := a.store.ListCardHistory(ctx, scope, versionKey)
	if err != nil {
		return nil, fmt.Errorf("reading card history: %w", err)
	}
	for _, card := range history {
		if card.Active {
			return card, nil
		}
	}

	return nil, memory.NotFoundError{Entity: "card", Key: versionKey}
}

// finalize stamps a draft with identity and lifecycle fields.
func (a *Applier) finalize(card memory.Card) memory.Card {
	now := time.Now().UTC()

	card.ID = memory.NewID()
	card.Active = true
	card.CreatedAt = now
	card.UpdatedAt = now

	return card
}

// valueFingerprint keys one value's chain within a multi-valued slot.
func valueFingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:4])
}
