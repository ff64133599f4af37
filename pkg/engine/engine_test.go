package engine_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/engine"
	"github.com/papercomputeco/recall/pkg/enrich"
	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/query"
	"github.com/papercomputeco/recall/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/versioning"
)

var _ = Describe("Engine", func() {
	var (
		ctx      context.Context
		store    *inmemory.Driver
		vectors  *testutils.MockVectorDriver
		embedder *testutils.MockEmbedder
		tracker  *enrich.Tracker
		eng      *engine.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		vectors = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()

		logger := zap.NewNop()

		extractor, err := extract.NewEngine(extract.Config{})
		Expect(err).NotTo(HaveOccurred())

		classifier, err := query.NewClassifier(nil)
		Expect(err).NotTo(HaveOccurred())

		tracker, err = enrich.NewTracker(store, 0, logger)
		Expect(err).NotTo(HaveOccurred())

		eng = engine.New(engine.Deps{
			Store:      store,
			Vectors:    vectors,
			Embedder:   embedder,
			Extractor:  extractor,
			Applier:    versioning.NewApplier(store, versioning.Config{}, logger),
			Tracker:    tracker,
			Classifier: classifier,
			Expander:   query.NewExpander(nil),
			Logger:     logger,
		})
	})

	AfterEach(func() {
		tracker.Close()
	})

	Describe("StoreTurn", func() {
		It("stores a fact and indexes its embedding", func() {
			id, err := eng.StoreTurn(ctx, "alice", "我现在住在北京朝阳区", time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())

			fact, err := store.GetFact(ctx, "alice", id)
			Expect(err).NotTo(HaveOccurred())
			Expect(fact.Summary).To(Equal("我现在住在北京朝阳区"))
			Expect(fact.Embedding).NotTo(BeEmpty())

			Expect(vectors.Documents["alice"]).To(HaveLen(1))
			Expect(vectors.Documents["alice"][0].ID).To(Equal(id))
		})

		It("reinforces an exact duplicate instead of inserting twice", func() {
			first, err := eng.StoreTurn(ctx, "alice", "我喜欢喝咖啡", time.Now())
			Expect(err).NotTo(HaveOccurred())

			second, err := eng.StoreTurn(ctx, "alice", "我喜欢喝咖啡", time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))

			fact, err := store.GetFact(ctx, "alice", first)
			Expect(err).NotTo(HaveOccurred())
			Expect(fact.ReinforcementCount).To(Equal(1))

			Expect(vectors.Documents["alice"]).To(HaveLen(1))
		})

		It("extracts an active card from the stored text", func() {
			id, err := eng.StoreTurn(ctx, "alice", "我现在住在北京朝阳区", time.Now())
			Expect(err).NotTo(HaveOccurred())

			card, err := eng.GetCard(ctx, "alice", "user", "location")
			Expect(err).NotTo(HaveOccurred())
			Expect(card).NotTo(BeNil())
			Expect(card.Value).To(Equal("北京朝阳区"))
			Expect(card.SourceMemoryID).To(Equal(id))
		})

		It("supersedes the location card when the user moves", func() {
			_, err := eng.StoreTurn(ctx, "alice", "我住朝阳区", time.Now())
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.StoreTurn(ctx, "alice", "我搬家到了海淀区", time.Now())
			Expect(err).NotTo(HaveOccurred())

			card, err := eng.GetCard(ctx, "alice", "user", "location")
			Expect(err).NotTo(HaveOccurred())
			Expect(card.Value).To(Equal("海淀区"))
			Expect(card.PredecessorID).NotTo(BeEmpty())

			history, err := eng.CardHistory(ctx, "alice", "user", "location")
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(2))
			Expect(history[0].Active).To(BeTrue())
			Expect(history[1].Active).To(BeFalse())
			Expect(history[0].PredecessorID).To(Equal(history[1].ID))
			Expect(history[1].Value).To(Equal("朝阳区"))
		})

		It("accumulates preferences instead of superseding them", func() {
			_, err := eng.StoreTurn(ctx, "alice", "我喜欢喝咖啡", time.Now())
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.StoreTurn(ctx, "alice", "我喜欢喝茶", time.Now())
			Expect(err).NotTo(HaveOccurred())

			active, err := store.ListActiveCards(ctx, "alice", "user", "preference")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(2))
		})

		It("stores the fact without a vector when the embedder is down", func() {
			embedder.FailOn = "我喜欢喝咖啡"

			id, err := eng.StoreTurn(ctx, "alice", "我喜欢喝咖啡", time.Now())
			Expect(err).NotTo(HaveOccurred())

			fact, err := store.GetFact(ctx, "alice", id)
			Expect(err).NotTo(HaveOccurred())
			Expect(fact.Embedding).To(BeNil())
			Expect(vectors.Documents["alice"]).To(BeEmpty())

			card, err := eng.GetCard(ctx, "alice", "user", "preference")
			Expect(err).NotTo(HaveOccurred())
			Expect(card).NotTo(BeNil())
		})

		It("rejects empty text", func() {
			_, err := eng.StoreTurn(ctx, "alice", "", time.Now())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SearchEnhanced", func() {
		It("answers a location question from the authoritative card", func() {
			_, err := eng.StoreTurn(ctx, "alice", "我现在住在北京朝阳区", time.Now())
			Expect(err).NotTo(HaveOccurred())

			results, err := eng.SearchEnhanced(ctx, "alice", "我住在哪里", nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).NotTo(BeEmpty())

			top := results[0]
			Expect(top.Authoritative).To(BeTrue())
			Expect(top.Card).NotTo(BeNil())
			Expect(top.Card.Value).To(Equal("北京朝阳区"))
			Expect(top.Sources).To(ContainElement(engine.SourceCard))
		})

		It("returns every accumulated preference for a taste question", func() {
			_, err := eng.StoreTurn(ctx, "alice", "我喜欢喝咖啡", time.Now())
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.StoreTurn(ctx, "alice", "我喜欢喝茶", time.Now())
			Expect(err).NotTo(HaveOccurred())

			results, err := eng.SearchEnhanced(ctx, "alice", "我喜欢什么", nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(results)).To(BeNumerically(">=", 2))
			Expect(results[0].Authoritative).To(BeTrue())
			Expect(results[1].Authoritative).To(BeTrue())
		})

		It("answers an identity question from the user type card", func() {
			_, err := eng.StoreTurn(ctx, "alice", "我是安卓玩机用户", time.Now())
			Expect(err).NotTo(HaveOccurred())

			results, err := eng.SearchEnhanced(ctx, "alice", "我是什么用户", nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).NotTo(BeEmpty())

			top := results[0]
			Expect(top.Authoritative).To(BeTrue())
			Expect(top.Card).NotTo(BeNil())
			Expect(top.Card.Slot).To(Equal("user_type"))
			Expect(top.Card.Value).To(Equal("安卓玩机用户"))
		})

		It("ranks authoritative hits ahead of lexical ones", func() {
			_, err := eng.StoreTurn(ctx, "alice", "我现在住在北京朝阳区", time.Now())
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.StoreTurn(ctx, "alice", "北京的地铁很方便", time.Now())
			Expect(err).NotTo(HaveOccurred())

			results, err := eng.SearchEnhanced(ctx, "alice", "我住在哪里", nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Authoritative).To(BeTrue())
			for _, r := range results[1:] {
				Expect(r.Authoritative).To(BeFalse())
			}
		})

		It("surfaces vector hits for generic queries", func() {
			id, err := eng.StoreTurn(ctx, "alice", "my favorite cafe near work", time.Now())
			Expect(err).NotTo(HaveOccurred())

			vectors.Results = []vector.QueryResult{
				{Document: vector.Document{ID: id, Scope: "alice"}, Score: 0.92},
			}

			results, err := eng.SearchEnhanced(ctx, "alice", "天气", nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Fact.ID).To(Equal(id))
			Expect(results[0].Sources).To(ContainElement(engine.SourceVector))
		})

		It("degrades to card and lexical channels when the embedder is down", func() {
			_, err := eng.StoreTurn(ctx, "alice", "我现在住在北京朝阳区", time.Now())
			Expect(err).NotTo(HaveOccurred())

			embedder.FailOn = "我住在哪里"

			results, err := eng.SearchEnhanced(ctx, "alice", "我住在哪里", nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).NotTo(BeEmpty())
			Expect(results[0].Authoritative).To(BeTrue())
		})

		It("truncates to topK", func() {
			for _, text := range []string{
				"咖啡店在一楼", "咖啡豆快用完了", "咖啡机坏了", "咖啡杯是蓝色的",
			} {
				_, err := eng.StoreTurn(ctx, "alice", text, time.Now())
				Expect(err).NotTo(HaveOccurred())
			}

			results, err := eng.SearchEnhanced(ctx, "alice", "咖啡", nil, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("does not leak results across scopes", func() {
			_, err := eng.StoreTurn(ctx, "alice", "我现在住在北京朝阳区", time.Now())
			Expect(err).NotTo(HaveOccurred())

			results, err := eng.SearchEnhanced(ctx, "bob", "我住在哪里", nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("GetCard", func() {
		It("returns nil without error for an empty slot", func() {
			card, err := eng.GetCard(ctx, "alice", "user", "location")
			Expect(err).NotTo(HaveOccurred())
			Expect(card).To(BeNil())
		})
	})
})
