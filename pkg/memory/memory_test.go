package memory_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/memory"
)

var _ = Describe("ContentHash", func() {
	It("is deterministic", func() {
		first := memory.ContentHash(memory.KindEpisodic, "I live in Beijing")
		second := memory.ContentHash(memory.KindEpisodic, "I live in Beijing")
		Expect(first).To(Equal(second))
	})

	It("differs across kinds for the same text", func() {
		episodic := memory.ContentHash(memory.KindEpisodic, "same text")
		semantic := memory.ContentHash(memory.KindSemantic, "same text")
		Expect(episodic).NotTo(Equal(semantic))
	})

	It("differs across summaries", func() {
		Expect(memory.ContentHash(memory.KindEpisodic, "a")).
			NotTo(Equal(memory.ContentHash(memory.KindEpisodic, "b")))
	})

	It("is a sha256 hex digest", func() {
		Expect(memory.ContentHash(memory.KindEpisodic, "x")).To(HaveLen(64))
	})
})

var _ = Describe("NewID", func() {
	It("returns unique 26-character ULIDs", func() {
		seen := map[string]bool{}
		for range 100 {
			id := memory.NewID()
			Expect(id).To(HaveLen(26))
			Expect(seen[id]).To(BeFalse())
			seen[id] = true
		}
	})
})

var _ = Describe("Card", func() {
	It("derives the default version key from entity and slot", func() {
		card := &memory.Card{Entity: "user", Slot: "location"}
		Expect(card.DefaultVersionKey()).To(Equal("user:location"))
	})

	It("matches exact entity/slot lookups only", func() {
		card := &memory.Card{Entity: "user", Slot: "location"}
		Expect(card.Matches("user", "location")).To(BeTrue())
		Expect(card.Matches("user", "preference")).To(BeFalse())
		Expect(card.Matches("partner", "location")).To(BeFalse())
	})
})

var _ = Describe("errors", func() {
	It("recognizes wrapped NotFoundError", func() {
		err := fmt.Errorf("loading: %w", memory.NotFoundError{Entity: "fact", Key: "abc"})
		Expect(memory.IsNotFound(err)).To(BeTrue())
		Expect(memory.IsConflict(err)).To(BeFalse())
		Expect(err.Error()).To(ContainSubstring("fact not found: abc"))
	})

	It("formats NotFoundError without a key", func() {
		Expect(memory.NotFoundError{Entity: "card"}.Error()).To(Equal("card not found"))
	})

	It("recognizes wrapped ConflictError", func() {
		err := fmt.Errorf("swapping: %w", memory.ConflictError{Key: "user:location", Reason: "predecessor inactive"})
		Expect(memory.IsConflict(err)).To(BeTrue())
		Expect(memory.IsNotFound(err)).To(BeFalse())
	})

	It("does not match unrelated errors", func() {
		err := errors.New("boom")
		Expect(memory.IsNotFound(err)).To(BeFalse())
		Expect(memory.IsConflict(err)).To(BeFalse())
	})

	It("keeps config and provider sentinels distinct", func() {
		wrapped := fmt.Errorf("extraction rules: %w", memory.ErrConfig)
		Expect(errors.Is(wrapped, memory.ErrConfig)).To(BeTrue())
		Expect(errors.Is(wrapped, memory.ErrProvider)).To(BeFalse())
	})
})
