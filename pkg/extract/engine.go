// Package extract implements pattern-rule extraction of structured cards
// from conversational text. The engine is pure: it compiles its rule set once
// at construction and never touches storage.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/papercomputeco/recall/pkg/memory"
)

// EngineVersion tags cards and enrichment records produced by this engine.
// Bump it when the rule set or scoring changes so backfill re-extracts.
const EngineVersion = "1.0.0"

// DefaultMinConfidence filters out matches the scorer considers weak.
const DefaultMinConfidence = 0.3

// Config holds configuration for the extraction engine.
type Config struct {
	// Rules is the rule set to compile. Nil means DefaultRules.
	Rules []RuleDef

	// MinConfidence drops cards scoring below the threshold. Zero means
	// DefaultMinConfidence.
	MinConfidence float64
}

type compiledRule struct {
	def RuleDef
	re  *regexp.Regexp
}

// Engine extracts structured cards from text.
type Engine struct {
	rules         []compiledRule
	minConfidence float64
}

// NewEngine compiles the rule set. An invalid rule fails construction with
// memory.ErrConfig; extraction itself never returns an error.
func NewEngine(cfg Config) (*Engine, error) {
	defs := cfg.Rules
	if defs == nil {
		defs = DefaultRules()
	}

	minConfidence := cfg.MinConfidence
	if minConfidence == 0 {
		minConfidence = DefaultMinConfidence
	}

	rules := make([]compiledRule, 0, len(defs))
	for _, def := range defs {
		re, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %s: %v", memory.ErrConfig, def.ID, err)
		}
		rules = append(rules, compiledRule{def: def, re: re})
	}

	// Highest priority first, so the version-key dedup below keeps the
	// most specific rule's card.
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].def.Priority > rules[j].def.Priority
	})

	return &Engine{rules: rules, minConfidence: minConfidence}, nil
}

// Extract runs every rule against text and returns at most one card per
// version key, ordered by rule priority. Empty text yields no cards. The
// returned cards are drafts: versioning assigns IDs, relations and
// timestamps.
func (e *Engine) Extract(text, scope string) []memory.Card {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var cards []memory.Card
	claimed := make(map[string]bool)

	for _, rule := range e.rules {
		caps := rule.re.FindStringSubmatch(text)
		if caps == nil {
			continue
		}

		confidence := e.score(rule, text)
		if confidence < e.minConfidence {
			continue
		}

		card := memory.Card{
			Scope:         scope,
			Kind:          rule.def.Kind,
			Entity:        expandTemplate(rule.def.Entity, caps),
			Slot:          expandTemplate(rule.def.Slot, caps),
			Value:         expandTemplate(rule.def.Value, caps),
			Polarity:      rule.def.Polarity,
			Engine:        memory.EngineRules,
			EngineVersion: EngineVersion,
			Confidence:    confidence,
		}
		if card.Polarity == "" {
			card.Polarity = memory.PolarityNeutral
		}
		card.VersionKey = card.DefaultVersionKey()

		if claimed[card.VersionKey] {
			continue
		}
		claimed[card.VersionKey] = true

		cards = append(cards, card)
	}

	return cards
}

// score rates a match: a 0.5 base, up to 0.3 for match coverage of the text,
// and 0.1 each for a literal (non-templated) entity and slot. Capped at 1.0.
func (e *Engine) score(rule compiledRule, text string) float64 {
	confidence := 0.5

	if m := rule.re.FindString(text); m != "" {
		confidence += float64(len(m)) / float64(len(text)) * 0.3
	}

	if !strings.Contains(rule.def.Entity, "$") {
		confidence += 0.1
	}
	if !strings.Contains(rule.def.Slot, "$") {
		confidence += 0.1
	}

	if confidence > 1.0 {
		confidence = 1.0
	}

	return confidence
}

// expandTemplate substitutes $1 through $9 with capture groups and trims the
// result. A placeholder with no matching group is left untouched.
func expandTemplate(template string, caps []string) string {
	result := template

	for i := 1; i <= 9 && i < len(caps); i++ {
		placeholder := fmt.Sprintf("$%d", i)
		result = strings.ReplaceAll(result, placeholder, caps[i])
	}

	return strings.TrimSpace(result)
}
