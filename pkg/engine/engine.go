// Package engine is the facade over the memory pipeline. It owns the write
// path (store, dedup, index, extract, version) and the fused read path
// (structured cards + vector similarity + lexical expansion).
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/enrich"
	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/query"
	"github.com/papercomputeco/recall/pkg/salience"
	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/versioning"
)

const (
	// DefaultTopK bounds fused search results when the caller passes zero.
	DefaultTopK = 10

	// lexicalLimit bounds the keyword channel so one broad term cannot
	// flood the fusion step.
	lexicalLimit = 50
)

// Engine wires the pipeline components together.
type Engine struct {
	store     storage.Driver
	vectors   vector.VectorDriver
	embedder  embeddings.Embedder
	extractor *extract.Engine
	applier   *versioning.Applier
	tracker   *enrich.Tracker
	classify  *query.Classifier
	expand    *query.Expander
	logger    *zap.Logger
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Store      storage.Driver
	Vectors    vector.VectorDriver
	Embedder   embeddings.Embedder
	Extractor  *extract.Engine
	Applier    *versioning.Applier
	Tracker    *enrich.Tracker
	Classifier *query.Classifier
	Expander   *query.Expander
	Logger     *zap.Logger
}

// New creates an engine from its dependencies.
func New(d Deps) *Engine {
	return &Engine{
		store:     d.Store,
		vectors:   d.Vectors,
		embedder:  d.Embedder,
		extractor: d.Extractor,
		applier:   d.Applier,
		tracker:   d.Tracker,
		classify:  d.Classifier,
		expand:    d.Expander,
		logger:    d.Logger,
	}
}

// StoreTurn ingests one utterance and returns the fact ID. An exact
// duplicate reinforces the existing fact instead of inserting a new one. An
// unavailable embedding provider is logged, not fatal: the fact is stored
// without a vector and backfill repairs it later.
func (e *Engine) StoreTurn(ctx context.Context, scope, text string, happenedAt time.Time) (string, error) {
	if text == "" {
		return "", fmt.Errorf("cannot store empty text")
	}

	hash := memory.ContentHash(memory.KindEpisodic, text)

	existing, err := e.store.FindFactByContentHash(ctx, scope, hash)
	if err != nil && !memory.IsNotFound(err) {
		return "", fmt.Errorf("checking for duplicate: %w", err)
	}
	if existing != nil {
		count, err := e.store.ReinforceFact(ctx, scope, existing.ID)
		if err != nil {
			return "", fmt.Errorf("reinforcing fact: %w", err)
		}

		e.logger.Debug("reinforced duplicate fact",
			zap.String("scope", scope),
			zap.String("fact_id", existing.ID),
			zap.Int("reinforcement_count", count),
		)

		return existing.ID, nil
	}

	embedding, err := e.embedder.Embed(ctx, text)
	if err != nil {
		e.logger.Warn("embedding unavailable, storing fact without vector",
			zap.String("scope", scope),
			zap.Error(err),
		)
		embedding = nil
	}

	now := time.Now().UTC()
	fact := &memory.Fact{
		ID:          memory.NewID(),
		Scope:       scope,
		Kind:        memory.KindEpisodic,
		Summary:     text,
		Embedding:   embedding,
		ContentHash: hash,
		HappenedAt:  happenedAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.store.InsertFact(ctx, fact); err != nil {
		if memory.IsConflict(err) {
			// A concurrent writer stored the same content between our
			// duplicate check and insert
			winner, findErr := e.store.FindFactByContentHash(ctx, scope, hash)
			if findErr != nil {
				return "", fmt.Errorf("resolving duplicate insert: %w", findErr)
			}
			if _, err := e.store.ReinforceFact(ctx, scope, winner.ID); err != nil {
				return "", fmt.Errorf("reinforcing fact: %w", err)
			}
			return winner.ID, nil
		}
		return "", fmt.Errorf("inserting fact: %w", err)
	}

	if len(embedding) > 0 {
		err := e.vectors.Add(ctx, []vector.Document{{
			ID:        fact.ID,
			Scope:     scope,
			Content:   text,
			Embedding: embedding,
		}})
		if err != nil {
			e.logger.Warn("failed to index fact embedding",
				zap.String("fact_id", fact.ID),
				zap.Error(err),
			)
		}
	}

	if err := e.enrichFact(ctx, fact); err != nil {
		e.logger.Warn("enrichment failed",
			zap.String("fact_id", fact.ID),
			zap.Error(err),
		)
	}

	return fact.ID, nil
}

// enrichFact runs tracker-gated extraction over one fact and applies the
// resulting cards to their version chains.
func (e *Engine) enrichFact(ctx context.Context, fact *memory.Fact) error {
	proceed, err := e.tracker.ShouldProcess(ctx, fact.Scope, fact.ID, memory.EngineRules, extract.EngineVersion)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}

	drafts := e.extractor.Extract(fact.Summary, fact.Scope)

	record := &memory.EnrichmentRecord{
		ID:            memory.NewID(),
		Scope:         fact.Scope,
		MemoryID:      fact.ID,
		Engine:        memory.EngineRules,
		EngineVersion: extract.EngineVersion,
		Success:       true,
		EnrichedAt:    time.Now().UTC(),
	}

	for _, draft := range drafts {
		draft.SourceMemoryID = fact.ID
		if !fact.HappenedAt.IsZero() {
			happened := fact.HappenedAt
			draft.EventDate = &happened
		}

		card, err := e.applier.Apply(ctx, draft)
		if err != nil {
			record.Success = false
			record.ErrorMessage = err.Error()

			e.logger.Warn("failed to apply card",
				zap.String("fact_id", fact.ID),
				zap.String("version_key", draft.VersionKey),
				zap.Error(err),
			)
			continue
		}

		record.CardIDs = append(record.CardIDs, card.ID)
	}

	return e.tracker.Record(ctx, record)
}

// SearchEnhanced answers a retrieval query by fusing three channels: an
// authoritative card lookup keyed off the question type, semantic vector
// search, and lexical search over expanded terms. Results merge per
// underlying fact, rank by salience, and authoritative hits pin to the
// front. queryEmbedding may be nil; the engine then embeds the query itself
// and degrades to card+lexical fusion if the provider is down.
func (e *Engine) SearchEnhanced(ctx context.Context, scope, queryText string, queryEmbedding []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	qtype := e.classify.Detect(queryText)

	if queryEmbedding == nil {
		emb, err := e.embedder.Embed(ctx, queryText)
		if err != nil {
			e.logger.Warn("query embedding unavailable, searching without vector channel",
				zap.String("scope", scope),
				zap.Error(err),
			)
		} else {
			queryEmbedding = emb
		}
	}

	merged := make(map[string]*Result)
	var order []string

	// Channel 1: authoritative structured lookup
	for _, card := range e.authoritativeCards(ctx, scope, qtype) {
		fact := e.factForCard(ctx, card)
		if fact == nil {
			continue
		}

		key := fact.ID
		if existing, ok := merged[key]; ok {
			existing.Card = card
			existing.Authoritative = true
			existing.Sources = append(existing.Sources, SourceCard)
			continue
		}

		merged[key] = &Result{
			Fact:          fact,
			Card:          card,
			Authoritative: true,
			Sources:       []Source{SourceCard},
		}
		order = append(order, key)
	}

	// Channel 2: semantic vector search
	if len(queryEmbedding) > 0 {
		hits, err := e.vectors.Query(ctx, scope, queryEmbedding, topK)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}

		for _, hit := range hits {
			if existing, ok := merged[hit.ID]; ok {
				existing.Sources = append(existing.Sources, SourceVector)
				continue
			}

			fact, err := e.store.GetFact(ctx, scope, hit.ID)
			if err != nil {
				if memory.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("loading fact %s: %w", hit.ID, err)
			}

			merged[hit.ID] = &Result{
				Fact:    fact,
				Sources: []Source{SourceVector},
			}
			order = append(order, hit.ID)
		}
	}

	// Channel 3: lexical search over expanded terms
	terms := e.expand.Terms(queryText)
	lexical, err := e.store.SearchFactsLexical(ctx, scope, terms, lexicalLimit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	for _, fact := range lexical {
		if existing, ok := merged[fact.ID]; ok {
			existing.Sources = append(existing.Sources, SourceLexical)
			continue
		}

		merged[fact.ID] = &Result{
			Fact:    fact,
			Sources: []Source{SourceLexical},
		}
		order = append(order, fact.ID)
	}

	now := time.Now().UTC()
	results := make([]Result, 0, len(order))
	for _, key := range order {
		r := merged[key]

		similarity := salience.Cosine(queryEmbedding, r.Fact.Embedding)
		r.Score = salience.Score(similarity, r.Fact.ReinforcementCount, r.Fact.HappenedAt, now)

		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Authoritative != results[j].Authoritative {
			return results[i].Authoritative
		}
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Fact.UpdatedAt.After(results[j].Fact.UpdatedAt)
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// authoritativeCards maps a question type to the structured slots that
// answer it directly.
func (e *Engine) authoritativeCards(ctx context.Context, scope string, qtype query.QuestionType) []*memory.Card {
	switch qtype {
	case query.Where:
		return e.lookupCards(ctx, scope, "user", "location")
	case query.Preference:
		return e.lookupCards(ctx, scope, "user", "preference")
	case query.WhatKind, query.Recency:
		return e.lookupCards(ctx, scope, "user", "user_type")
	default:
		return nil
	}
}

func (e *Engine) lookupCards(ctx context.Context, scope, entity, slot string) []*memory.Card {
	cards, err := e.store.ListActiveCards(ctx, scope, entity, slot)
	if err != nil {
		e.logger.Warn("authoritative card lookup failed",
			zap.String("scope", scope),
			zap.String("entity", entity),
			zap.String("slot", slot),
			zap.Error(err),
		)
		return nil
	}

	return cards
}

// factForCard loads a card's source fact. Cards without a resolvable source
// are skipped rather than failing the whole search.
func (e *Engine) factForCard(ctx context.Context, card *memory.Card) *memory.Fact {
	if card.SourceMemoryID == "" {
		return nil
	}

	fact, err := e.store.GetFact(ctx, card.Scope, card.SourceMemoryID)
	if err != nil {
		e.logger.Warn("card source fact missing",
			zap.String("card_id", card.ID),
			zap.String("memory_id", card.SourceMemoryID),
			zap.Error(err),
		)
		return nil
	}

	return fact
}

// GetCard returns the active card for an entity/slot. An empty slot is a
// normal outcome and comes back as (nil, nil).
func (e *Engine) GetCard(ctx context.Context, scope, entity, slot string) (*memory.Card, error) {
	card, err := e.store.GetActiveCard(ctx, scope, entity, slot)
	if memory.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up card: %w", err)
	}

	return card, nil
}

// CardHistory returns the full version chain for an entity/slot, newest
// first.
func (e *Engine) CardHistory(ctx context.Context, scope, entity, slot string) ([]*memory.Card, error) {
	history, err := e.store.ListCardHistory(ctx, scope, entity+":"+slot)
	if err != nil {
		return nil, fmt.Errorf("reading card history: %w", err)
	}

	return history, nil
}
