// Package backfill re-runs extraction over a scope's historical facts and
// repairs missing fact embeddings. Work fans out over a bounded worker pool
// so a large scope cannot starve interactive calls, and the tracker skips
// facts the current engine version has already processed.
package backfill

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/enrich"
	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/versioning"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Config is the configuration options for the backfiller.
type Config struct {
	// Store is the storage backend holding facts and cards.
	Store storage.Driver

	// Vectors is the vector index to repair embeddings into.
	Vectors vector.VectorDriver

	// Embedder generates embeddings for facts missing them.
	Embedder embeddings.Embedder

	// Extractor re-runs pattern extraction over fact summaries.
	Extractor *extract.Engine

	// Applier writes extracted cards into their version chains.
	Applier *versioning.Applier

	// Tracker gates extraction per engine version.
	Tracker *enrich.Tracker

	// NumWorkers is the number of pool workers (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Backfiller fans historical facts out over a worker pool.
type Backfiller struct {
	config *Config
	logger *zap.Logger
}

// NewBackfiller creates a backfiller.
func NewBackfiller(c *Config) *Backfiller {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	return &Backfiller{config: c, logger: c.Logger}
}

// Run processes every fact in a scope: re-extraction for facts the current
// engine version has not seen, embedding repair for facts stored without a
// vector. progress may be nil; when set, one event is sent per processed
// fact. Cancelling ctx stops the run between facts, never inside a card
// transaction.
func (b *Backfiller) Run(ctx context.Context, scope string, progress chan<- Progress) (*Result, error) {
	facts, err := b.config.Store.ListFacts(ctx, scope)
	if err != nil {
		return nil, err
	}

	result := &Result{Scanned: len(facts)}
	if len(facts) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(facts))
	byID := make(map[string]*memory.Fact, len(facts))
	for _, fact := range facts {
		ids = append(ids, fact.ID)
		byID[fact.ID] = fact
	}

	pending, err := b.config.Tracker.Unprocessed(ctx, scope, ids, memory.EngineRules, extract.EngineVersion)
	if err != nil {
		return nil, err
	}

	pendingSet := make(map[string]bool, len(pending))
	for _, id := range pending {
		pendingSet[id] = true
	}

	queue := make(chan *memory.Fact, b.config.QueueSize)

	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(int(b.config.NumWorkers))
	for i := uint(0); i < b.config.NumWorkers; i++ {
		go func(id uint) {
			defer wg.Done()
			b.logger.Debug("backfill worker started", zap.Uint("worker_id", id))

			for fact := range queue {
				p := b.processFact(ctx, fact, pendingSet[fact.ID])

				mu.Lock()
				switch {
				case p.Err != nil:
					result.Failed++
				case !pendingSet[fact.ID] && !p.EmbeddingRepaired:
					result.Skipped++
				default:
					if pendingSet[fact.ID] {
						result.Extracted++
						result.CardsCreated += p.CardsCreated
					}
					if p.EmbeddingRepaired {
						result.EmbeddingsRepaired++
					}
				}
				mu.Unlock()

				if progress != nil {
					select {
					case progress <- p:
					case <-ctx.Done():
					}
				}
			}

			b.logger.Debug("backfill worker stopped", zap.Uint("worker_id", id))
		}(i)
	}

	var runErr error
feed:
	for _, fact := range facts {
		select {
		case queue <- fact:
		case <-ctx.Done():
			runErr = ctx.Err()
			break feed
		}
	}

	close(queue)
	wg.Wait()

	return result, runErr
}

// processFact handles one fact: embedding repair first, then tracker-gated
// extraction.
func (b *Backfiller) processFact(ctx context.Context, fact *memory.Fact, needsExtraction bool) Progress {
	p := Progress{MemoryID: fact.ID}

	if ctx.Err() != nil {
		p.Err = ctx.Err()
		return p
	}

	if len(fact.Embedding) == 0 {
		if err := b.repairEmbedding(ctx, fact); err != nil {
			b.logger.Warn("embedding repair failed",
				zap.String("fact_id", fact.ID),
				zap.Error(err),
			)
		} else {
			p.EmbeddingRepaired = true
		}
	}

	if !needsExtraction {
		return p
	}

	drafts := b.config.Extractor.Extract(fact.Summary, fact.Scope)

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

		card, err := b.config.Applier.Apply(ctx, draft)
		if err != nil {
			record.Success = false
			record.ErrorMessage = err.Error()
			p.Err = err
			continue
		}

		record.CardIDs = append(record.CardIDs, card.ID)
		p.CardsCreated++
	}

	if err := b.config.Tracker.Record(ctx, record); err != nil {
		p.Err = err
	}

	return p
}

// repairEmbedding fills in a fact's missing vector and indexes it.
func (b *Backfiller) repairEmbedding(ctx context.Context, fact *memory.Fact) error {
	embedding, err := b.config.Embedder.Embed(ctx, fact.Summary)
	if err != nil {
		return err
	}

	if err := b.config.Store.UpdateFactEmbedding(ctx, fact.Scope, fact.ID, embedding); err != nil {
		return err
	}

	return b.config.Vectors.Add(ctx, []vector.Document{{
		ID:        fact.ID,
		Scope:     fact.Scope,
		Content:   fact.Summary,
		Embedding: embedding,
	}})
}
