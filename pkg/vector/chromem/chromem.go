// Package chromem provides a vector driver backed by chromem-go, a pure Go
// embedded vector database. Each scope gets its own collection so similarity
// queries never cross tenant boundaries.
package chromem

import (
	"context"
	"fmt"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/vector"
)

// ChromemDriver implements vector.VectorDriver using chromem-go.
type ChromemDriver struct {
	db     *chromemgo.DB
	logger *zap.Logger

	// collections maps scope to its collection. Collections are created
	// lazily on first use.
	mu          sync.RWMutex
	collections map[string]*chromemgo.Collection
}

// Config holds configuration for the chromem driver.
type Config struct {
	// PersistPath is a directory for on-disk persistence. Empty means a
	// purely in-memory index rebuilt from storage on startup.
	PersistPath string

	// Compress enables gzip compression of the persisted index.
	Compress bool
}

// NewChromemDriver creates a new chromem-backed vector driver.
func NewChromemDriver(c Config, logger *zap.Logger) (*ChromemDriver, error) {
	var db *chromemgo.DB
	var err error

	if c.PersistPath != "" {
		db, err = chromemgo.NewPersistentDB(c.PersistPath, c.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening persistent vector db: %w", err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	logger.Info("chromem vector driver initialized",
		zap.String("persist_path", c.PersistPath),
		zap.Bool("compress", c.Compress),
	)

	return &ChromemDriver{
		db:          db,
		logger:      logger,
		collections: make(map[string]*chromemgo.Collection),
	}, nil
}

// collection returns the collection for a scope, creating it on first use.
func (d *ChromemDriver) collection(scope string) (*chromemgo.Collection, error) {
	name := collectionName(scope)

	d.mu.RLock()
	col, ok := d.collections[scope]
	d.mu.RUnlock()
	if ok {
		return col, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Re-check under the write lock
	if col, ok := d.collections[scope]; ok {
		return col, nil
	}

	// GetOrCreateCollection also resurrects persisted collections after a
	// restart. The embedding func stays nil: callers always pass vectors.
	col, err := d.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}

	d.collections[scope] = col

	return col, nil
}

// Add stores documents with their embeddings.
func (d *ChromemDriver) Add(ctx context.Context, docs []vector.Document) error {
	for _, doc := range docs {
		col, err := d.collection(doc.Scope)
		if err != nil {
			return err
		}

		err = col.AddDocument(ctx, chromemgo.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  map[string]string{"scope": doc.Scope},
		})
		if err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}
	}

	return nil
}

// Query finds the topK most similar documents within one scope.
func (d *ChromemDriver) Query(ctx context.Context, scope string, embedding []float32, topK int) ([]vector.QueryResult, error) {
	col, err := d.collection(scope)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection
	count := col.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	out := make([]vector.QueryResult, 0, len(results))
	for _, r := range results {
		out = append(out, vector.QueryResult{
			Document: vector.Document{
				ID:        r.ID,
				Scope:     scope,
				Content:   r.Content,
				Embedding: r.Embedding,
			},
			Score: r.Similarity,
		})
	}

	return out, nil
}

// Delete removes documents by their IDs within one scope.
func (d *ChromemDriver) Delete(ctx context.Context, scope string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	col, err := d.collection(scope)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	return nil
}

// Close releases resources. The chromem database holds everything in memory
// (plus its persistence directory); there is nothing to flush.
func (d *ChromemDriver) Close() error {
	return nil
}

func collectionName(scope string) string {
	if scope == "" {
		return "global"
	}

	return "scope_" + scope
}

// Ensure ChromemDriver implements vector.VectorDriver
var _ vector.VectorDriver = (*ChromemDriver)(nil)
