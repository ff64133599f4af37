// Package query analyzes retrieval queries: classifying question intent and
// expanding query text for lexical recall. Both components are pure and
// bilingual (Chinese/English) out of the box.
package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/papercomputeco/recall/pkg/memory"
)

// QuestionType is the detected intent of a retrieval query.
type QuestionType string

const (
	// WhatKind covers identity questions ("我是什么用户", "who am I").
	WhatKind QuestionType = "what_kind"
	// HowMany covers counting questions ("有多少个", "how many").
	HowMany QuestionType = "how_many"
	// Recency covers current-state questions ("现在的", "latest").
	Recency QuestionType = "recency"
	// Update covers change questions ("之前vs现在", "changed from").
	Update QuestionType = "update"
	// Where covers location questions ("在哪", "where").
	Where QuestionType = "where"
	// Preference covers taste questions ("喜欢什么", "what do you like").
	Preference QuestionType = "preference"
	// When covers temporal questions ("什么时候", "when").
	When QuestionType = "when"
	// Have covers possession questions ("有什么", "what do you have").
	Have QuestionType = "have"
	// Can covers capability questions ("会什么吗", "can you").
	Can QuestionType = "can"
	// Generic is the fallback for unrecognized queries.
	Generic QuestionType = "generic"
)

// IntentPattern binds a regex to a question type with a priority.
type IntentPattern struct {
	Type     QuestionType `json:"type" mapstructure:"type"`
	Pattern  string       `json:"pattern" mapstructure:"pattern"`
	Priority int          `json:"priority" mapstructure:"priority"`
}

// DefaultIntentPatterns returns the built-in bilingual detection set.
func DefaultIntentPatterns() []IntentPattern {
	return []IntentPattern{
		{Type: WhatKind, Priority: 100,
			Pattern: `我是什么|我是谁|我的身份|我的类型|我属于|我算.*用户`},
		{Type: WhatKind, Priority: 90,
			Pattern: `what kind|what type|who am i|what am i|my identity`},
		{Type: Recency, Priority: 80,
			Pattern: `现在|目前|最新|当前|最近|current|latest|right now|at the moment|up to date`},
		{Type: HowMany, Priority: 70,
			Pattern: `多少|有几个|几多|how many|how much|count of|number of`},
		{Type: Update, Priority: 60,
			Pattern: `之前|原来|以前.*现在|changed|updated|was.*now`},
		{Type: Where, Priority: 50,
			Pattern: `在哪|在哪里|where|which place|which location`},
		{Type: When, Priority: 45,
			Pattern: `什么时候|何时|when|at what time|what time`},
		{Type: Preference, Priority: 40,
			Pattern: `喜欢什么|爱什么|偏好|what.*like|what do you like`},
		{Type: Have, Priority: 35,
			Pattern: `有什么|拥有|have|possess`},
		{Type: Can, Priority: 30,
			Pattern: `会.*吗|能.*吗|can you|able to|capable of`},
	}
}

type compiledIntent struct {
	qtype QuestionType
	re    *regexp.Regexp
}

// Classifier detects the question type of a query.
type Classifier struct {
	patterns []compiledIntent
}

// NewClassifier compiles the intent patterns, highest priority first. Nil
// patterns means DefaultIntentPatterns. An invalid pattern fails with
// memory.ErrConfig.
func NewClassifier(patterns []IntentPattern) (*Classifier, error) {
	if patterns == nil {
		patterns = DefaultIntentPatterns()
	}

	ordered := make([]IntentPattern, len(patterns))
	copy(ordered, patterns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	compiled := make([]compiledIntent, 0, len(ordered))
	for _, p := range ordered {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: intent pattern %q: %v", memory.ErrConfig, p.Pattern, err)
		}
		compiled = append(compiled, compiledIntent{qtype: p.Type, re: re})
	}

	return &Classifier{patterns: compiled}, nil
}

// Detect returns the question type of a query. The first matching pattern in
// priority order wins; no match yields Generic.
func (c *Classifier) Detect(text string) QuestionType {
	lower := strings.ToLower(text)

	for _, p := range c.patterns {
		if p.re.MatchString(lower) {
			return p.qtype
		}
	}

	return Generic
}
