package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent recall configuration stored as config.toml
// in the .recall/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Extraction  ExtractionConfig  `toml:"extraction"`
	Enrichment  EnrichmentConfig  `toml:"enrichment"`
	Backfill    BackfillConfig    `toml:"backfill"`
	Search      SearchConfig      `toml:"search"`
}

// StorageConfig holds relational storage settings.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// VectorStoreConfig holds vector index settings.
type VectorStoreConfig struct {
	// PersistPath is the directory for on-disk index persistence. Empty
	// keeps the index purely in memory.
	PersistPath string `toml:"persist_path,omitempty"`

	// Compress enables gzip compression of the persisted index.
	Compress bool `toml:"compress,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// ExtractionConfig holds pattern-extraction settings.
type ExtractionConfig struct {
	// MinConfidence drops extracted cards scoring below the threshold.
	MinConfidence float64 `toml:"min_confidence,omitempty"`
}

// EnrichmentConfig holds enrichment tracker settings.
type EnrichmentConfig struct {
	// CacheSize is the maximum number of cached enrichment confirmations.
	CacheSize int64 `toml:"cache_size,omitempty"`
}

// BackfillConfig holds backfill worker pool settings.
type BackfillConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	// TopK is the default fused result count.
	TopK int `toml:"top_k,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"vector_store.persist_path": {
		get: func(c *Config) string { return c.VectorStore.PersistPath },
		set: func(c *Config, v string) error { c.VectorStore.PersistPath = v; return nil },
	},
	"vector_store.compress": {
		get: func(c *Config) string { return strconv.FormatBool(c.VectorStore.Compress) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for vector_store.compress: %w", err)
			}
			c.VectorStore.Compress = b
			return nil
		},
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"extraction.min_confidence": {
		get: func(c *Config) string {
			if c.Extraction.MinConfidence == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Extraction.MinConfidence, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for extraction.min_confidence: %w", err)
			}
			c.Extraction.MinConfidence = f
			return nil
		},
	},
	"enrichment.cache_size": {
		get: func(c *Config) string {
			if c.Enrichment.CacheSize == 0 {
				return ""
			}
			return strconv.FormatInt(c.Enrichment.CacheSize, 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for enrichment.cache_size: %w", err)
			}
			c.Enrichment.CacheSize = n
			return nil
		},
	},
	"backfill.workers": {
		get: func(c *Config) string {
			if c.Backfill.Workers == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Backfill.Workers), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for backfill.workers: %w", err)
			}
			c.Backfill.Workers = uint(n)
			return nil
		},
	},
	"backfill.queue_size": {
		get: func(c *Config) string {
			if c.Backfill.QueueSize == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Backfill.QueueSize), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for backfill.queue_size: %w", err)
			}
			c.Backfill.QueueSize = uint(n)
			return nil
		},
	},
	"search.top_k": {
		get: func(c *Config) string {
			if c.Search.TopK == 0 {
				return ""
			}
			return strconv.Itoa(c.Search.TopK)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for search.top_k: %w", err)
			}
			c.Search.TopK = n
			return nil
		},
	},
}
