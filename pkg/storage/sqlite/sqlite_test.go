package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/storage/sqlite"
)

// testFact creates a fact with the given summary and creation time offset so
// ordering assertions do not depend on sub-millisecond timing.
func testFact(scope, summary string, offset time.Duration) *memory.Fact {
	now := time.Now().UTC().Add(offset)
	return &memory.Fact{
		ID:          memory.NewID(),
		Scope:       scope,
		Kind:        memory.KindEpisodic,
		Summary:     summary,
		ContentHash: memory.ContentHash(memory.KindEpisodic, summary),
		HappenedAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func testCard(scope, entity, slot, value string, active bool) *memory.Card {
	now := time.Now().UTC()
	card := &memory.Card{
		ID:            memory.NewID(),
		Scope:         scope,
		Kind:          memory.CardFact,
		Entity:        entity,
		Slot:          slot,
		Value:         value,
		Polarity:      memory.PolarityNeutral,
		Relation:      memory.RelationSets,
		Engine:        memory.EngineRules,
		EngineVersion: "1.0.0",
		Confidence:    0.9,
		Active:        active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	card.VersionKey = card.DefaultVersionKey()
	return card
}

var _ = Describe("SQLiteDriver", func() {
	var (
		driver *sqlite.SQLiteDriver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = sqlite.NewSQLiteDriver(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewSQLiteDriver", func() {
		It("creates a driver with file database", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "test.db")

			s, err := sqlite.NewSQLiteDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			// Verify file was created
			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("InsertFact and GetFact", func() {
		It("stores and retrieves a fact", func() {
			fact := testFact("alice", "I live in Beijing", 0)
			fact.Embedding = []float32{0.1, 0.2, 0.3}
			fact.HappenedAt = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

			Expect(driver.InsertFact(ctx, fact)).To(Succeed())

			retrieved, err := driver.GetFact(ctx, "alice", fact.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Summary).To(Equal("I live in Beijing"))
			Expect(retrieved.Embedding).To(Equal([]float32{0.1, 0.2, 0.3}))
			Expect(retrieved.ContentHash).To(Equal(fact.ContentHash))
			Expect(retrieved.HappenedAt.UTC()).To(Equal(fact.HappenedAt))
		})

		It("stores a fact without an embedding", func() {
			fact := testFact("alice", "no vector yet", 0)

			Expect(driver.InsertFact(ctx, fact)).To(Succeed())

			retrieved, err := driver.GetFact(ctx, "alice", fact.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Embedding).To(BeNil())
		})

		It("returns NotFoundError for a missing fact", func() {
			_, err := driver.GetFact(ctx, "alice", "nonexistent")
			Expect(memory.IsNotFound(err)).To(BeTrue())
		})

		It("does not cross scopes", func() {
			fact := testFact("alice", "scoped", 0)
			Expect(driver.InsertFact(ctx, fact)).To(Succeed())

			_, err := driver.GetFact(ctx, "bob", fact.ID)
			Expect(memory.IsNotFound(err)).To(BeTrue())
		})

		It("rejects a duplicate content hash with a ConflictError", func() {
			Expect(driver.InsertFact(ctx, testFact("alice", "same text", 0))).To(Succeed())

			err := driver.InsertFact(ctx, testFact("alice", "same text", time.Second))
			Expect(memory.IsConflict(err)).To(BeTrue())
		})

		It("allows the same content hash in different scopes", func() {
			Expect(driver.InsertFact(ctx, testFact("alice", "same text", 0))).To(Succeed())
			Expect(driver.InsertFact(ctx, testFact("bob", "same text", 0))).To(Succeed())
		})

		It("rejects nil facts", func() {
			err := driver.InsertFact(ctx, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("nil fact"))
		})
	})

	Describe("FindFactByContentHash", func() {
		It("finds a stored fact by hash", func() {
			fact := testFact("alice", "findable", 0)
			Expect(driver.InsertFact(ctx, fact)).To(Succeed())

			found, err := driver.FindFactByContentHash(ctx, "alice", fact.ContentHash)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(fact.ID))
		})

		It("returns NotFoundError for an unknown hash", func() {
			_, err := driver.FindFactByContentHash(ctx, "alice", "deadbeef")
			Expect(memory.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("ReinforceFact", func() {
		It("increments the reinforcement count", func() {
			fact := testFact("alice", "repeated", 0)
			Expect(driver.InsertFact(ctx, fact)).To(Succeed())

			count, err := driver.ReinforceFact(ctx, "alice", fact.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			count, err = driver.ReinforceFact(ctx, "alice", fact.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("returns NotFoundError for a missing fact", func() {
			_, err := driver.ReinforceFact(ctx, "alice", "nonexistent")
			Expect(memory.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("ListFacts", func() {
		It("returns facts newest first", func() {
			old := testFact("alice", "oldest", -2*time.Hour)
			mid := testFact("alice", "middle", -time.Hour)
			newest := testFact("alice", "newest", 0)

			Expect(driver.InsertFact(ctx, old)).To(Succeed())
			Expect(driver.InsertFact(ctx, newest)).To(Succeed())
			Expect(driver.InsertFact(ctx, mid)).To(Succeed())

			facts, err := driver.ListFacts(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(3))
			Expect(facts[0].Summary).To(Equal("newest"))
			Expect(facts[1].Summary).To(Equal("middle"))
			Expect(facts[2].Summary).To(Equal("oldest"))
		})

		It("returns empty for an empty scope", func() {
			facts, err := driver.ListFacts(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(BeEmpty())
		})
	})

	Describe("SearchFactsLexical", func() {
		BeforeEach(func() {
			Expect(driver.InsertFact(ctx, testFact("alice", "I love drinking Coffee", -3*time.Hour))).To(Succeed())
			Expect(driver.InsertFact(ctx, testFact("alice", "我现在住在北京朝阳区", -2*time.Hour))).To(Succeed())
			Expect(driver.InsertFact(ctx, testFact("alice", "tea is fine too", -time.Hour))).To(Succeed())
		})

		It("matches a term case-insensitively", func() {
			facts, err := driver.SearchFactsLexical(ctx, "alice", []string{"coffee"}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Summary).To(ContainSubstring("Coffee"))
		})

		It("matches CJK substrings", func() {
			facts, err := driver.SearchFactsLexical(ctx, "alice", []string{"北京"}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Summary).To(ContainSubstring("北京"))
		})

		It("unions multiple terms", func() {
			facts, err := driver.SearchFactsLexical(ctx, "alice", []string{"coffee", "tea"}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(2))
		})

		It("honors the limit, newest first", func() {
			facts, err := driver.SearchFactsLexical(ctx, "alice", []string{"coffee", "tea"}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Summary).To(Equal("tea is fine too"))
		})

		It("returns nothing for an empty term list", func() {
			facts, err := driver.SearchFactsLexical(ctx, "alice", nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(BeEmpty())
		})

		It("treats LIKE metacharacters literally", func() {
			Expect(driver.InsertFact(ctx, testFact("alice", "100% sure", 0))).To(Succeed())

			facts, err := driver.SearchFactsLexical(ctx, "alice", []string{"100%"}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))

			facts, err = driver.SearchFactsLexical(ctx, "alice", []string{"%"}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
		})
	})

	Describe("UpdateFactEmbedding", func() {
		It("fills in a missing embedding", func() {
			fact := testFact("alice", "vectorless", 0)
			Expect(driver.InsertFact(ctx, fact)).To(Succeed())

			Expect(driver.UpdateFactEmbedding(ctx, "alice", fact.ID, []float32{1, 2, 3})).To(Succeed())

			retrieved, err := driver.GetFact(ctx, "alice", fact.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Embedding).To(Equal([]float32{1, 2, 3}))
		})

		It("returns NotFoundError for a missing fact", func() {
			err := driver.UpdateFactEmbedding(ctx, "alice", "nonexistent", []float32{1})
			Expect(memory.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("InsertCard and active lookups", func() {
		It("stores and retrieves the active card", func() {
			card := testCard("alice", "user", "location", "北京", true)
			card.SourceMemoryID = "mem-1"

			Expect(driver.InsertCard(ctx, card)).To(Succeed())

			active, err := driver.GetActiveCard(ctx, "alice", "user", "location")
			Expect(err).NotTo(HaveOccurred())
			Expect(active.Value).To(Equal("北京"))
			Expect(active.SourceMemoryID).To(Equal("mem-1"))
			Expect(active.Active).To(BeTrue())
		})

		It("rejects a second active card for the same version key", func() {
			Expect(driver.InsertCard(ctx, testCard("alice", "user", "location", "北京", true))).To(Succeed())

			err := driver.InsertCard(ctx, testCard("alice", "user", "location", "上海", true))
			Expect(memory.IsConflict(err)).To(BeTrue())
		})

		It("allows inactive cards alongside the active one", func() {
			Expect(driver.InsertCard(ctx, testCard("alice", "user", "location", "北京", true))).To(Succeed())
			Expect(driver.InsertCard(ctx, testCard("alice", "user", "location", "上海", false))).To(Succeed())
		})

		It("allows active cards with the same key in different scopes", func() {
			Expect(driver.InsertCard(ctx, testCard("alice", "user", "location", "北京", true))).To(Succeed())
			Expect(driver.InsertCard(ctx, testCard("bob", "user", "location", "上海", true))).To(Succeed())
		})

		It("returns NotFoundError when no card is active", func() {
			_, err := driver.GetActiveCard(ctx, "alice", "user", "location")
			Expect(memory.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("ListActiveCards", func() {
		It("returns every active card for a multi-valued slot", func() {
			coffee := testCard("alice", "user", "preference", "coffee", true)
			coffee.VersionKey = "user:preference:1111"
			tea := testCard("alice", "user", "preference", "tea", true)
			tea.VersionKey = "user:preference:2222"

			Expect(driver.InsertCard(ctx, coffee)).To(Succeed())
			Expect(driver.InsertCard(ctx, tea)).To(Succeed())

			cards, err := driver.ListActiveCards(ctx, "alice", "user", "preference")
			Expect(err).NotTo(HaveOccurred())
			Expect(cards).To(HaveLen(2))
		})

		It("excludes inactive cards", func() {
			Expect(driver.InsertCard(ctx, testCard("alice", "user", "location", "北京", true))).To(Succeed())
			Expect(driver.InsertCard(ctx, testCard("alice", "user", "location", "旧值", false))).To(Succeed())

			cards, err := driver.ListActiveCards(ctx, "alice", "user", "location")
			Expect(err).NotTo(HaveOccurred())
			Expect(cards).To(HaveLen(1))
			Expect(cards[0].Value).To(Equal("北京"))
		})
	})

	Describe("SwapActiveCard", func() {
		It("deactivates the predecessor and activates the successor atomically", func() {
			old := testCard("alice", "user", "location", "朝阳区", true)
			Expect(driver.InsertCard(ctx, old)).To(Succeed())

			successor := testCard("alice", "user", "location", "海淀区", true)
			successor.Relation = memory.RelationUpdates
			successor.PredecessorID = old.ID

			Expect(driver.SwapActiveCard(ctx, "alice", old.ID, successor)).To(Succeed())

			active, err := driver.GetActiveCard(ctx, "alice", "user", "location")
			Expect(err).NotTo(HaveOccurred())
			Expect(active.Value).To(Equal("海淀区"))
			Expect(active.PredecessorID).To(Equal(old.ID))

			history, err := driver.ListCardHistory(ctx, "alice", "user:location")
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(2))
		})

		It("returns ConflictError when the predecessor is no longer active", func() {
			old := testCard("alice", "user", "location", "朝阳区", true)
			Expect(driver.InsertCard(ctx, old)).To(Succeed())

			first := testCard("alice", "user", "location", "海淀区", true)
			first.PredecessorID = old.ID
			Expect(driver.SwapActiveCard(ctx, "alice", old.ID, first)).To(Succeed())

			// Second swap against the same stale predecessor loses
			second := testCard("alice", "user", "location", "东城区", true)
			second.PredecessorID = old.ID
			err := driver.SwapActiveCard(ctx, "alice", old.ID, second)
			Expect(memory.IsConflict(err)).To(BeTrue())

			// The winner's value survives
			active, err := driver.GetActiveCard(ctx, "alice", "user", "location")
			Expect(err).NotTo(HaveOccurred())
			Expect(active.Value).To(Equal("海淀区"))
		})

		It("leaves the predecessor active when the successor insert fails", func() {
			old := testCard("alice", "user", "location", "朝阳区", true)
			Expect(driver.InsertCard(ctx, old)).To(Succeed())

			// Successor colliding with its own predecessor's ID forces the
			// insert inside the transaction to fail.
			bad := testCard("alice", "user", "location", "海淀区", true)
			bad.ID = old.ID

			err := driver.SwapActiveCard(ctx, "alice", old.ID, bad)
			Expect(err).To(HaveOccurred())

			active, err := driver.GetActiveCard(ctx, "alice", "user", "location")
			Expect(err).NotTo(HaveOccurred())
			Expect(active.Value).To(Equal("朝阳区"))
		})
	})

	Describe("RetractActiveCard", func() {
		It("deactivates the active card and returns it", func() {
			card := testCard("alice", "user", "location", "北京", true)
			Expect(driver.InsertCard(ctx, card)).To(Succeed())

			retracted, err := driver.RetractActiveCard(ctx, "alice", "user:location")
			Expect(err).NotTo(HaveOccurred())
			Expect(retracted.ID).To(Equal(card.ID))

			_, err = driver.GetActiveCard(ctx, "alice", "user", "location")
			Expect(memory.IsNotFound(err)).To(BeTrue())
		})

		It("returns NotFoundError when nothing is active", func() {
			_, err := driver.RetractActiveCard(ctx, "alice", "user:location")
			Expect(memory.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("ListCardHistory", func() {
		It("returns the full chain newest first, active or not", func() {
			first := testCard("alice", "user", "location", "朝阳区", true)
			first.CreatedAt = first.CreatedAt.Add(-time.Hour)
			first.UpdatedAt = first.CreatedAt
			Expect(driver.InsertCard(ctx, first)).To(Succeed())

			second := testCard("alice", "user", "location", "海淀区", true)
			second.Relation = memory.RelationUpdates
			second.PredecessorID = first.ID
			Expect(driver.SwapActiveCard(ctx, "alice", first.ID, second)).To(Succeed())

			history, err := driver.ListCardHistory(ctx, "alice", "user:location")
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(2))
			Expect(history[0].Value).To(Equal("海淀区"))
			Expect(history[0].Active).To(BeTrue())
			Expect(history[1].Value).To(Equal("朝阳区"))
			Expect(history[1].Active).To(BeFalse())
		})
	})

	Describe("Enrichments", func() {
		newRecord := func(memoryID string) *memory.EnrichmentRecord {
			return &memory.EnrichmentRecord{
				ID:            memory.NewID(),
				Scope:         "alice",
				MemoryID:      memoryID,
				Engine:        memory.EngineRules,
				EngineVersion: "1.0.0",
				Success:       true,
				CardIDs:       []string{"card-1"},
				EnrichedAt:    time.Now().UTC(),
			}
		}

		It("records and reports enrichment", func() {
			Expect(driver.InsertEnrichment(ctx, newRecord("mem-1"))).To(Succeed())

			done, err := driver.HasEnrichment(ctx, "alice", "mem-1", memory.EngineRules, "1.0.0")
			Expect(err).NotTo(HaveOccurred())
			Expect(done).To(BeTrue())
		})

		It("reports false for an unprocessed fact", func() {
			done, err := driver.HasEnrichment(ctx, "alice", "mem-1", memory.EngineRules, "1.0.0")
			Expect(err).NotTo(HaveOccurred())
			Expect(done).To(BeFalse())
		})

		It("distinguishes engine versions", func() {
			Expect(driver.InsertEnrichment(ctx, newRecord("mem-1"))).To(Succeed())

			done, err := driver.HasEnrichment(ctx, "alice", "mem-1", memory.EngineRules, "2.0.0")
			Expect(err).NotTo(HaveOccurred())
			Expect(done).To(BeFalse())
		})

		It("rejects a duplicate enrichment key with a ConflictError", func() {
			Expect(driver.InsertEnrichment(ctx, newRecord("mem-1"))).To(Succeed())

			err := driver.InsertEnrichment(ctx, newRecord("mem-1"))
			Expect(memory.IsConflict(err)).To(BeTrue())
		})

		It("lists processed memory IDs", func() {
			Expect(driver.InsertEnrichment(ctx, newRecord("mem-1"))).To(Succeed())
			Expect(driver.InsertEnrichment(ctx, newRecord("mem-2"))).To(Succeed())

			ids, err := driver.ListEnrichedMemoryIDs(ctx, "alice", memory.EngineRules, "1.0.0")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(ConsistOf("mem-1", "mem-2"))
		})
	})
})
