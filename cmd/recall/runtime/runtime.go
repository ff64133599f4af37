// Package runtime wires the memory pipeline together for CLI commands.
// Every command that touches the engine goes through Build so storage,
// vectors, embedding, extraction and versioning are assembled one way.
package runtime

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/recall/pkg/embeddings/utils"
	"github.com/papercomputeco/recall/pkg/engine"
	"github.com/papercomputeco/recall/pkg/enrich"
	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/query"
	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/storage/inmemory"
	"github.com/papercomputeco/recall/pkg/storage/sqlite"
	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/vector/chromem"
	"github.com/papercomputeco/recall/pkg/versioning"
)

// Options carries the resolved configuration a Runtime is built from.
type Options struct {
	// SQLitePath is the fact/card database path. Empty means in-memory
	// storage, which only makes sense for experiments.
	SQLitePath string

	// VectorPersistPath is the chromem persistence directory. Empty keeps
	// the vector index in memory.
	VectorPersistPath string

	// VectorCompress enables gzip compression of the persisted index.
	VectorCompress bool

	// EmbeddingProvider, EmbeddingTarget and EmbeddingModel configure the
	// embedding client.
	EmbeddingProvider string
	EmbeddingTarget   string
	EmbeddingModel    string

	// MinConfidence drops extracted cards below the threshold. Zero uses
	// the extraction engine default.
	MinConfidence float64

	// EnrichmentCacheSize bounds the enrichment confirmation cache. Zero
	// uses the tracker default.
	EnrichmentCacheSize int64
}

// OptionsFromViper reads Options out of the resolved viper configuration.
func OptionsFromViper(v *viper.Viper) Options {
	return Options{
		SQLitePath:          v.GetString("storage.sqlite_path"),
		VectorPersistPath:   v.GetString("vector_store.persist_path"),
		VectorCompress:      v.GetBool("vector_store.compress"),
		EmbeddingProvider:   v.GetString("embedding.provider"),
		EmbeddingTarget:     v.GetString("embedding.target"),
		EmbeddingModel:      v.GetString("embedding.model"),
		MinConfidence:       v.GetFloat64("extraction.min_confidence"),
		EnrichmentCacheSize: v.GetInt64("enrichment.cache_size"),
	}
}

// Runtime holds the assembled pipeline components.
type Runtime struct {
	Store     storage.Driver
	Vectors   vector.VectorDriver
	Embedder  embeddings.Embedder
	Extractor *extract.Engine
	Applier   *versioning.Applier
	Tracker   *enrich.Tracker
	Engine    *engine.Engine

	logger *zap.Logger
}

// Build assembles a Runtime from options. Callers own Close.
func Build(opts Options, logger *zap.Logger) (*Runtime, error) {
	store, err := newStorageDriver(opts, logger)
	if err != nil {
		return nil, err
	}

	vectors, err := chromem.NewChromemDriver(chromem.Config{
		PersistPath: opts.VectorPersistPath,
		Compress:    opts.VectorCompress,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: opts.EmbeddingProvider,
		TargetURL:    opts.EmbeddingTarget,
		Model:        opts.EmbeddingModel,
	})
	if err != nil {
		_ = store.Close()
		_ = vectors.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	extractor, err := extract.NewEngine(extract.Config{
		MinConfidence: opts.MinConfidence,
	})
	if err != nil {
		_ = store.Close()
		_ = vectors.Close()
		return nil, fmt.Errorf("creating extraction engine: %w", err)
	}

	applier := versioning.NewApplier(store, versioning.Config{}, logger)

	tracker, err := enrich.NewTracker(store, opts.EnrichmentCacheSize, logger)
	if err != nil {
		_ = store.Close()
		_ = vectors.Close()
		return nil, fmt.Errorf("creating enrichment tracker: %w", err)
	}

	classifier, err := query.NewClassifier(nil)
	if err != nil {
		_ = store.Close()
		_ = vectors.Close()
		tracker.Close()
		return nil, fmt.Errorf("creating query classifier: %w", err)
	}

	eng := engine.New(engine.Deps{
		Store:      store,
		Vectors:    vectors,
		Embedder:   embedder,
		Extractor:  extractor,
		Applier:    applier,
		Tracker:    tracker,
		Classifier: classifier,
		Expander:   query.NewExpander(nil),
		Logger:     logger,
	})

	return &Runtime{
		Store:     store,
		Vectors:   vectors,
		Embedder:  embedder,
		Extractor: extractor,
		Applier:   applier,
		Tracker:   tracker,
		Engine:    eng,
		logger:    logger,
	}, nil
}

// Close releases every component. Safe to call once, after all work is done.
func (r *Runtime) Close() {
	r.Tracker.Close()

	if err := r.Vectors.Close(); err != nil {
		r.logger.Warn("closing vector driver", zap.Error(err))
	}

	if err := r.Store.Close(); err != nil {
		r.logger.Warn("closing storage driver", zap.Error(err))
	}
}

func newStorageDriver(opts Options, logger *zap.Logger) (storage.Driver, error) {
	if opts.SQLitePath != "" {
		driver, err := sqlite.NewSQLiteDriver(opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening SQLite storage: %w", err)
		}
		logger.Info("using SQLite storage", zap.String("path", opts.SQLitePath))
		return driver, nil
	}

	logger.Info("using in-memory storage")
	return inmemory.NewDriver(), nil
}
