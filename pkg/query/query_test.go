package query_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/query"
)

var _ = Describe("Classifier", func() {
	var classifier *query.Classifier

	BeforeEach(func() {
		var err error
		classifier, err = query.NewClassifier(nil)
		Expect(err).NotTo(HaveOccurred())
	})

	DescribeTable("Detect",
		func(text string, expected query.QuestionType) {
			Expect(classifier.Detect(text)).To(Equal(expected))
		},
		Entry("identity question in Chinese", "我是什么用户", query.WhatKind),
		Entry("identity question in English", "Who am I", query.WhatKind),
		Entry("recency question", "我最近喜欢什么", query.Recency),
		Entry("counting question", "我有多少台设备", query.HowMany),
		Entry("change question", "我之前住在哪里", query.Update),
		Entry("location question", "我住在哪里", query.Where),
		Entry("location question in English", "Where do I live", query.Where),
		Entry("temporal question", "我什么时候搬的家", query.When),
		Entry("preference question", "我喜欢什么", query.Preference),
		Entry("possession question", "我有什么设备", query.Have),
		Entry("capability question", "can you summarize", query.Can),
		Entry("unrecognized query", "天气", query.Generic),
	)

	It("prefers the higher-priority pattern when several match", func() {
		custom, err := query.NewClassifier([]query.IntentPattern{
			{Type: query.Where, Pattern: `北京`, Priority: 10},
			{Type: query.Recency, Pattern: `北京`, Priority: 20},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(custom.Detect("北京")).To(Equal(query.Recency))
	})

	It("rejects an intent pattern that does not compile", func() {
		_, err := query.NewClassifier([]query.IntentPattern{
			{Type: query.Where, Pattern: `(`, Priority: 1},
		})
		Expect(errors.Is(err, memory.ErrConfig)).To(BeTrue())
	})
})

var _ = Describe("Expander", func() {
	var expander *query.Expander

	BeforeEach(func() {
		expander = query.NewExpander(nil)
	})

	It("strips question words from an unsegmented Chinese query", func() {
		Expect(expander.Terms("我是什么用户")).To(Equal([]string{"用户"}))
	})

	It("removes multi-rune stopwords as units", func() {
		terms := expander.Terms("我什么时候搬家")
		Expect(terms).To(Equal([]string{"搬家"}))
	})

	It("filters English stopword tokens", func() {
		Expect(expander.Terms("where is the coffee")).To(Equal([]string{"coffee"}))
	})

	It("keeps content terms from mixed-language queries", func() {
		terms := expander.Terms("我喜欢的咖啡店 address")
		Expect(terms).To(ContainElements("咖啡店", "address"))
		Expect(terms).NotTo(ContainElement("的"))
	})

	It("falls back to the raw tokens when everything is a stopword", func() {
		Expect(expander.Terms("什么")).To(Equal([]string{"什么"}))
		Expect(expander.Terms("what is the")).To(Equal([]string{"what", "is", "the"}))
	})

	It("returns nothing for blank input", func() {
		Expect(expander.Terms("")).To(BeEmpty())
		Expect(expander.Terms("   ")).To(BeEmpty())
	})

	It("joins terms with OR", func() {
		Expect(expander.Expand("where is the coffee shop")).To(Equal("coffee OR shop"))
	})
})
