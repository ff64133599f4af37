// Package inmemory provides a map-backed storage driver. It exists for tests
// and exercises the same error taxonomy as the SQLite driver, including
// conflict detection on concurrent card swaps.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards all maps below. Card swaps hold the write lock across the
	// deactivate-and-insert pair, giving the same atomicity the SQLite
	// driver gets from a transaction.
	mu sync.RWMutex

	facts       map[string]*memory.Fact             // fact id -> fact
	factsByHash map[string]string                   // scope \x00 hash -> fact id
	cards       map[string]*memory.Card             // card id -> card
	enrichments map[string]*memory.EnrichmentRecord // unique key -> record
}

// NewDriver creates a new in-memory storage driver.
func NewDriver() *Driver {
	return &Driver{
		facts:       make(map[string]*memory.Fact),
		factsByHash: make(map[string]string),
		cards:       make(map[string]*memory.Card),
		enrichments: make(map[string]*memory.EnrichmentRecord),
	}
}

func hashKey(scope, contentHash string) string {
	return scope + "\x00" + contentHash
}

func enrichmentKey(scope, memoryID string, engine memory.EngineKind, engineVersion string) string {
	return scope + "\x00" + memoryID + "\x00" + string(engine) + "\x00" + engineVersion
}

// InsertFact stores a new fact.
func (s *Driver) InsertFact(_ context.Context, fact *memory.Fact) error {
	if fact == nil {
		return errors.New("cannot store nil fact")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := hashKey(fact.Scope, fact.ContentHash)
	if _, ok := s.factsByHash[key]; ok {
		return memory.ConflictError{Key: fact.ContentHash, Reason: "duplicate content hash"}
	}

	clone := *fact
	s.facts[fact.ID] = &clone
	s.factsByHash[key] = fact.ID

	return nil
}

// GetFact retrieves a fact by ID within a scope.
func (s *Driver) GetFact(_ context.Context, scope, id string) (*memory.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fact, ok := s.facts[id]
	if !ok || fact.Scope != scope {
		return nil, memory.NotFoundError{Entity: "fact", Key: id}
	}

	clone := *fact
	return &clone, nil
}

// FindFactByContentHash returns the fact with the given content hash.
func (s *Driver) FindFactByContentHash(_ context.Context, scope, contentHash string) (*memory.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.factsByHash[hashKey(scope, contentHash)]
	if !ok {
		return nil, memory.NotFoundError{Entity: "fact", Key: contentHash}
	}

	clone := *s.facts[id]
	return &clone, nil
}

// ReinforceFact increments a fact's reinforcement count.
func (s *Driver) ReinforceFact(_ context.Context, scope, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fact, ok := s.facts[id]
	if !ok || fact.Scope != scope {
		return 0, memory.NotFoundError{Entity: "fact", Key: id}
	}

	fact.ReinforcementCount++
	fact.UpdatedAt = time.Now().UTC()

	return fact.ReinforcementCount, nil
}

// ListFacts returns all facts in a scope, newest first.
func (s *Driver) ListFacts(_ context.Context, scope string) ([]*memory.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var facts []*memory.Fact
	for _, fact := range s.facts {
		if fact.Scope != scope {
			continue
		}
		clone := *fact
		facts = append(facts, &clone)
	}

	sortFactsNewestFirst(facts)

	return facts, nil
}

// SearchFactsLexical returns facts whose summary contains at least one term.
func (s *Driver) SearchFactsLexical(_ context.Context, scope string, terms []string, limit int) ([]*memory.Fact, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*memory.Fact
	for _, fact := range s.facts {
		if fact.Scope != scope {
			continue
		}
		if containsAny(fact.Summary, terms) {
			clone := *fact
			matches = append(matches, &clone)
		}
	}

	sortFactsNewestFirst(matches)

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// UpdateFactEmbedding sets the embedding on a fact.
func (s *Driver) UpdateFactEmbedding(_ context.Context, scope, id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fact, ok := s.facts[id]
	if !ok || fact.Scope != scope {
		return memory.NotFoundError{Entity: "fact", Key: id}
	}

	fact.Embedding = append([]float32(nil), embedding...)
	fact.UpdatedAt = time.Now().UTC()

	return nil
}

// InsertCard stores a new card.
func (s *Driver) InsertCard(_ context.Context, card *memory.Card) error {
	if card == nil {
		return errors.New("cannot store nil card")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertCardLocked(card)
}

// insertCardLocked enforces the single-active-card invariant. Callers hold
// the write lock.
func (s *Driver) insertCardLocked(card *memory.Card) error {
	if card.Active {
		for _, existing := range s.cards {
			if existing.Scope == card.Scope &&
				existing.VersionKey == card.VersionKey &&
				existing.Active {
				return memory.ConflictError{Key: card.VersionKey, Reason: "active card already exists"}
			}
		}
	}

	clone := *card
	s.cards[card.ID] = &clone

	return nil
}

// GetActiveCard returns the newest active card for (scope, entity, slot).
func (s *Driver) GetActiveCard(ctx context.Context, scope, entity, slot string) (*memory.Card, error) {
	cards, err := s.ListActiveCards(ctx, scope, entity, slot)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, memory.NotFoundError{Entity: "card", Key: entity + ":" + slot}
	}

	return cards[0], nil
}

// ListActiveCards returns every active card for (scope, entity, slot).
func (s *Driver) ListActiveCards(_ context.Context, scope, entity, slot string) ([]*memory.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var cards []*memory.Card
	for _, card := range s.cards {
		if card.Scope != scope || !card.Active || !card.Matches(entity, slot) {
			continue
		}
		if seen[card.VersionKey] {
			return nil, memory.DataIntegrityError{
				Key:    card.VersionKey,
				Detail: "multiple active cards for one version key",
			}
		}
		seen[card.VersionKey] = true

		clone := *card
		cards = append(cards, &clone)
	}

	sortCardsNewestFirst(cards)

	return cards, nil
}

// SwapActiveCard atomically deactivates the predecessor and inserts the
// successor as the new active card.
func (s *Driver) SwapActiveCard(_ context.Context, scope, predecessorID string, successor *memory.Card) error {
	if successor == nil {
		return errors.New("cannot store nil card")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	predecessor, ok := s.cards[predecessorID]
	if !ok || predecessor.Scope != scope || !predecessor.Active {
		return memory.ConflictError{
			Key:    successor.VersionKey,
			Reason: "predecessor is no longer the active card",
		}
	}

	predecessor.Active = false
	predecessor.UpdatedAt = time.Now().UTC()

	if err := s.insertCardLocked(successor); err != nil {
		predecessor.Active = true
		return err
	}

	return nil
}

// RetractActiveCard deactivates the active card for a version key.
func (s *Driver) RetractActiveCard(_ context.Context, scope, versionKey string) (*memory.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, card := range s.cards {
		if card.Scope == scope && card.VersionKey == versionKey && card.Active {
			card.Active = false
			card.UpdatedAt = time.Now().UTC()

			clone := *card
			return &clone, nil
		}
	}

	return nil, memory.NotFoundError{Entity: "card", Key: versionKey}
}

// ListCardHistory returns every card for a version key, newest first.
func (s *Driver) ListCardHistory(_ context.Context, scope, versionKey string) ([]*memory.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cards []*memory.Card
	for _, card := range s.cards {
		if card.Scope == scope && card.VersionKey == versionKey {
			clone := *card
			cards = append(cards, &clone)
		}
	}

	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].CreatedAt.After(cards[j].CreatedAt)
		}
		return cards[i].ID > cards[j].ID
	})

	return cards, nil
}

// InsertEnrichment stores an enrichment record.
func (s *Driver) InsertEnrichment(_ context.Context, record *memory.EnrichmentRecord) error {
	if record == nil {
		return errors.New("cannot store nil enrichment record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := enrichmentKey(record.Scope, record.MemoryID, record.Engine, record.EngineVersion)
	if _, ok := s.enrichments[key]; ok {
		return memory.ConflictError{
			Key:    record.MemoryID,
			Reason: "enrichment already recorded for engine version",
		}
	}

	clone := *record
	s.enrichments[key] = &clone

	return nil
}

// HasEnrichment reports whether a fact was already processed by an engine version.
func (s *Driver) HasEnrichment(_ context.Context, scope, memoryID string, engine memory.EngineKind, engineVersion string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.enrichments[enrichmentKey(scope, memoryID, engine, engineVersion)]
	return ok, nil
}

// ListEnrichedMemoryIDs returns IDs of all facts processed by an engine version.
func (s *Driver) ListEnrichedMemoryIDs(_ context.Context, scope string, engine memory.EngineKind, engineVersion string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, record := range s.enrichments {
		if record.Scope == scope && record.Engine == engine && record.EngineVersion == engineVersion {
			ids = append(ids, record.MemoryID)
		}
	}

	sort.Strings(ids)

	return ids, nil
}

// CountCards returns the number of stored cards, active or not.
func (s *Driver) CountCards() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func sortFactsNewestFirst(facts []*memory.Fact) {
	sort.Slice(facts, func(i, j int) bool {
		if !facts[i].CreatedAt.Equal(facts[j].CreatedAt) {
			return facts[i].CreatedAt.After(facts[j].CreatedAt)
		}
		return facts[i].ID > facts[j].ID
	})
}

func sortCardsNewestFirst(cards []*memory.Card) {
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].UpdatedAt.Equal(cards[j].UpdatedAt) {
			return cards[i].UpdatedAt.After(cards[j].UpdatedAt)
		}
		return cards[i].ID > cards[j].ID
	})
}

func containsAny(summary string, terms []string) bool {
	for _, term := range terms {
		if term == "" {
			continue
		}
		if containsFold(summary, term) {
			return true
		}
	}

	return false
}

// containsFold is a case-insensitive substring check matching the SQLite
// driver's LIKE semantics for ASCII.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// Ensure Driver implements storage.Driver
var _ storage.Driver = (*Driver)(nil)
