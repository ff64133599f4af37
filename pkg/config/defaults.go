package config

const (
	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultMinConfidence = 0.3

	defaultEnrichmentCacheSize = 65536

	defaultBackfillWorkers   = 3
	defaultBackfillQueueSize = 256

	defaultSearchTopK = 10
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Extraction: ExtractionConfig{
			MinConfidence: defaultMinConfidence,
		},
		Enrichment: EnrichmentConfig{
			CacheSize: defaultEnrichmentCacheSize,
		},
		Backfill: BackfillConfig{
			Workers:   defaultBackfillWorkers,
			QueueSize: defaultBackfillQueueSize,
		},
		Search: SearchConfig{
			TopK: defaultSearchTopK,
		},
	}
}
