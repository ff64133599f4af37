package query

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultStopwords returns the built-in bilingual stopword list. Multi-rune
// Chinese entries are removed as substrings before single-rune ones, so
// "什么" disappears as a unit instead of leaving "么" behind.
func DefaultStopwords() []string {
	return []string{
		// Chinese question words
		"什么时候", "为什么", "什么", "怎么", "如何", "哪里", "哪个", "多少",
		"谁", "咋", "吗", "呢",
		// Chinese particles
		"的", "了", "是", "有", "在",
		// Single-character pronouns
		"我", "你", "他", "她", "它",
		// English question words
		"what", "how", "where", "which", "who", "when", "why", "whose",
		// English stopwords
		"a", "an", "the", "is", "are", "was", "were", "do", "does", "did", "am",
	}
}

// Expander strips stopwords from queries to sharpen lexical search terms.
type Expander struct {
	// byLength holds the stopwords longest-first for substring removal.
	byLength []string
	// exact is the lookup set for whole-token filtering.
	exact map[string]bool
}

// NewExpander builds an expander. Nil stopwords means DefaultStopwords.
func NewExpander(stopwords []string) *Expander {
	if stopwords == nil {
		stopwords = DefaultStopwords()
	}

	byLength := make([]string, len(stopwords))
	copy(byLength, stopwords)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len([]rune(byLength[i])) > len([]rune(byLength[j]))
	})

	exact := make(map[string]bool, len(stopwords))
	for _, w := range stopwords {
		exact[strings.ToLower(w)] = true
	}

	return &Expander{byLength: byLength, exact: exact}
}

// Terms returns the content-bearing search terms of a query. Non-empty input
// always yields at least one term: when everything is a stopword the
// unfiltered tokens come back so retrieval still has something to match.
func (e *Expander) Terms(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	raw := tokenize(trimmed)

	var filtered []string
	for _, token := range raw {
		if containsCJK(token) {
			filtered = append(filtered, e.stripCJKStopwords(token)...)
			continue
		}
		if !e.exact[strings.ToLower(token)] {
			filtered = append(filtered, token)
		}
	}

	if len(filtered) == 0 {
		return raw
	}

	return filtered
}

// Expand returns the query's terms joined with OR, suitable for logging and
// for drivers that take a single expression.
func (e *Expander) Expand(text string) string {
	return strings.Join(e.Terms(text), " OR ")
}

// stripCJKStopwords removes stopwords embedded in an unsegmented CJK token,
// longest first, and returns the surviving runs.
func (e *Expander) stripCJKStopwords(token string) []string {
	remaining := token
	for _, stopword := range e.byLength {
		remaining = strings.ReplaceAll(remaining, stopword, " ")
	}

	return strings.Fields(remaining)
}

func tokenize(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		tokens = []string{text}
	}

	return tokens
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}

	return false
}
