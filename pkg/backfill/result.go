package backfill

// Result summarizes one backfill run.
type Result struct {
	// Scanned is the number of facts examined in the scope.
	Scanned int

	// Extracted is the number of facts re-run through extraction.
	Extracted int

	// CardsCreated is the number of cards the run produced.
	CardsCreated int

	// EmbeddingsRepaired is the number of facts that got a missing
	// embedding filled in.
	EmbeddingsRepaired int

	// Skipped is the number of facts already processed by the current
	// engine version.
	Skipped int

	// Failed is the number of facts whose processing errored.
	Failed int
}

// Progress is one per-fact progress event.
type Progress struct {
	// MemoryID is the fact just processed.
	MemoryID string

	// CardsCreated is how many cards extraction produced for this fact.
	CardsCreated int

	// EmbeddingRepaired reports whether the fact got a new embedding.
	EmbeddingRepaired bool

	// Err is set when processing this fact failed.
	Err error
}
