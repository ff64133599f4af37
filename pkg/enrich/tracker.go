// Package enrich tracks which extraction engine versions have processed
// which facts, making enrichment idempotent across store calls, restarts and
// backfill runs.
package enrich

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/storage"
)

// Tracker answers "has this fact been processed by this engine version" with
// a ristretto cache in front of the enrichment table. The cache holds
// positive confirmations only: ristretto is lossy, so a miss always falls
// through to storage, and a hit is always trustworthy.
type Tracker struct {
	store  storage.Driver
	cache  *ristretto.Cache
	logger *zap.Logger
}

// NewTracker creates a tracker. cacheSize is the maximum number of cached
// confirmations; zero picks a sensible default.
func NewTracker(store storage.Driver, cacheSize int64, logger *zap.Logger) (*Tracker, error) {
	if cacheSize <= 0 {
		cacheSize = 1 << 16
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating enrichment cache: %w", err)
	}

	return &Tracker{store: store, cache: cache, logger: logger}, nil
}

func cacheKey(scope, memoryID string, engine memory.EngineKind, engineVersion string) string {
	return scope + "\x00" + memoryID + "\x00" + string(engine) + "\x00" + engineVersion
}

// ShouldProcess reports whether a fact still needs processing by the given
// engine version.
func (t *Tracker) ShouldProcess(ctx context.Context, scope, memoryID string, engine memory.EngineKind, engineVersion string) (bool, error) {
	key := cacheKey(scope, memoryID, engine, engineVersion)

	if _, ok := t.cache.Get(key); ok {
		return false, nil
	}

	processed, err := t.store.HasEnrichment(ctx, scope, memoryID, engine, engineVersion)
	if err != nil {
		return false, fmt.Errorf("checking enrichment: %w", err)
	}

	if processed {
		t.cache.Set(key, struct{}{}, 1)
	}

	return !processed, nil
}

// Record persists an enrichment record. A record that already exists (a
// concurrent writer got there first) is treated as recorded, not as a
// failure. Failed extraction runs are recorded too, so a consistently
// failing fact is not retried forever under the same engine version.
func (t *Tracker) Record(ctx context.Context, record *memory.EnrichmentRecord) error {
	err := t.store.InsertEnrichment(ctx, record)
	if err != nil && !memory.IsConflict(err) {
		return fmt.Errorf("recording enrichment: %w", err)
	}

	if memory.IsConflict(err) {
		t.logger.Debug("enrichment already recorded",
			zap.String("scope", record.Scope),
			zap.String("memory_id", record.MemoryID),
			zap.String("engine_version", record.EngineVersion),
		)
	}

	t.cache.Set(cacheKey(record.Scope, record.MemoryID, record.Engine, record.EngineVersion), struct{}{}, 1)

	return nil
}

// Unprocessed filters ids down to the facts the given engine version has not
// yet processed. Backfill uses it to size its work queue in one query
// instead of probing per fact.
func (t *Tracker) Unprocessed(ctx context.Context, scope string, ids []string, engine memory.EngineKind, engineVersion string) ([]string, error) {
	done, err := t.store.ListEnrichedMemoryIDs(ctx, scope, engine, engineVersion)
	if err != nil {
		return nil, fmt.Errorf("listing enriched facts: %w", err)
	}

	doneSet := make(map[string]bool, len(done))
	for _, id := range done {
		doneSet[id] = true
	}

	var pending []string
	for _, id := range ids {
		if !doneSet[id] {
			pending = append(pending, id)
		}
	}

	return pending, nil
}

// Close releases the cache's internal goroutines.
func (t *Tracker) Close() {
	t.cache.Close()
}
