package extract

import "github.com/papercomputeco/recall/pkg/memory"

// RuleDef is a declarative extraction rule. Rules are data so deployments can
// swap the default set out via configuration without recompiling.
type RuleDef struct {
	// ID uniquely identifies the rule.
	ID string `json:"id" mapstructure:"id"`

	// Pattern is the regular expression matched against the input text.
	Pattern string `json:"pattern" mapstructure:"pattern"`

	// Kind is the card kind produced on a match.
	Kind memory.CardKind `json:"kind" mapstructure:"kind"`

	// Entity, Slot and Value are templates. $1 through $9 expand to the
	// corresponding capture groups.
	Entity string `json:"entity" mapstructure:"entity"`
	Slot   string `json:"slot" mapstructure:"slot"`
	Value  string `json:"value" mapstructure:"value"`

	// Polarity is set for preference rules, empty otherwise.
	Polarity memory.Polarity `json:"polarity,omitempty" mapstructure:"polarity"`

	// Priority breaks ties when several rules produce cards for the same
	// version key in one pass: the higher-priority rule wins.
	Priority int `json:"priority" mapstructure:"priority"`
}

// DefaultRules returns the built-in bilingual (Chinese/English) rule set.
func DefaultRules() []RuleDef {
	return []RuleDef{
		{
			ID:       "user_identity",
			Pattern:  `(?i)我(?:是|算)(?:一个)?(.{1,20})(?:用户|玩机党|开发者|学生|工程师|设计师|产品经理)`,
			Kind:     memory.CardProfile,
			Entity:   "user",
			Slot:     "user_type",
			Value:    "$1用户",
			Priority: 100,
		},
		{
			ID:       "location_moved",
			Pattern:  `(?i)我(?:搬家|搬|搬迁|迁移)(?:到了|去了|到|去)([^，。！,!了]{1,50})`,
			Kind:     memory.CardEvent,
			Entity:   "user",
			Slot:     "location",
			Value:    "$1",
			Priority: 90,
		},
		{
			ID:       "location_live",
			Pattern:  `(?i)我(?:现在|目前|如今)?(?:住在|居住在|生活在|住|居住|在)([^，。！,!了]{1,50})`,
			Kind:     memory.CardFact,
			Entity:   "user",
			Slot:     "location",
			Value:    "$1",
			Priority: 85,
		},
		{
			ID:       "phone_model",
			Pattern:  `(?i)我(?:的)?(?:手机|电话|机子)(?:是|：|:)?\s*([a-zA-Z0-9\x{4e00}-\x{9fff}]{1,30})`,
			Kind:     memory.CardFact,
			Entity:   "user.phone",
			Slot:     "model",
			Value:    "$1",
			Priority: 80,
		},
		{
			ID:       "device_ownership",
			Pattern:  `(?i)(?:我|我的)(.{1,10})(?:手机|电脑|设备|平板|笔记本)(?:是|：|:)?\s*(.{1,30})`,
			Kind:     memory.CardFact,
			Entity:   "user",
			Slot:     "device_$1",
			Value:    "$2",
			Priority: 75,
		},
		{
			ID:       "preference_like",
			Pattern:  `(?i)我(?:喜欢|爱|偏爱|偏好)(.{1,50})`,
			Kind:     memory.CardPreference,
			Entity:   "user",
			Slot:     "preference",
			Value:    "$1",
			Polarity: memory.PolarityPositive,
			Priority: 70,
		},
		{
			ID:       "preference_dislike",
			Pattern:  `(?i)我(?:讨厌|不喜欢|厌恶|反感)(.{1,50})`,
			Kind:     memory.CardPreference,
			Entity:   "user",
			Slot:     "preference",
			Value:    "$1",
			Polarity: memory.PolarityNegative,
			Priority: 70,
		},
		{
			ID:       "work_company",
			Pattern:  `(?i)我(?:在)?(?:就职|工作|任职)(?:于|在)?(.{1,50})(?:公司|厂|局|所|部)?`,
			Kind:     memory.CardFact,
			Entity:   "user",
			Slot:     "workplace",
			Value:    "$1",
			Priority: 60,
		},
		{
			ID:       "education_school",
			Pattern:  `(?i)我(?:就读|毕业于|在)(.{1,50})(?:大学|学院|学校|中学|小学)?`,
			Kind:     memory.CardProfile,
			Entity:   "user",
			Slot:     "education",
			Value:    "$1",
			Priority: 55,
		},
		{
			ID:       "en_location",
			Pattern:  `(?i)I live in (.{1,50})`,
			Kind:     memory.CardFact,
			Entity:   "user",
			Slot:     "location",
			Value:    "$1",
			Priority: 50,
		},
		{
			ID:       "en_work",
			Pattern:  `(?i)I work at (.{1,50})`,
			Kind:     memory.CardFact,
			Entity:   "user",
			Slot:     "workplace",
			Value:    "$1",
			Priority: 50,
		},
		{
			ID:       "en_identity",
			Pattern:  `(?i)I am a? ?(.{1,30})`,
			Kind:     memory.CardProfile,
			Entity:   "user",
			Slot:     "identity",
			Value:    "$1",
			Priority: 45,
		},
		{
			ID:       "relationship_family",
			Pattern:  `(?i)我(?:的)?(.{1,10})(?:是|叫)(.{1,20})`,
			Kind:     memory.CardRelationship,
			Entity:   "user",
			Slot:     "family_$1",
			Value:    "$2",
			Priority: 40,
		},
		{
			ID:       "user_identity_simple",
			Pattern:  `(?i)我(?:是|属于)(.{1,30})`,
			Kind:     memory.CardProfile,
			Entity:   "user",
			Slot:     "identity",
			Value:    "$1",
			Priority: 30,
		},
	}
}
