// Package perception classifies a raw utterance into the context record
// consumed by the responder and the importance scorer. Classification is a
// pure function of the text: fixed keyword sets checked in a fixed order,
// no I/O, safe from any goroutine.
package perception

import "strings"

// Topic categories, checked in this order; first match wins.
const (
	TopicConsciousness = "consciousness_exploration"
	TopicBridge        = "consciousness_bridge"
	TopicMemory        = "memory_inquiry"
	TopicTechnical     = "technical_inquiry"
	TopicGeneral       = "general"
)

// Emotional tones, same first-match rule.
const (
	ToneFriendly      = "friendly"
	ToneConcerned     = "concerned"
	TonePositive      = "positive"
	ToneContemplative = "contemplative"
	ToneNeutral       = "neutral"
)

// Complexity levels.
const (
	ComplexityHigh   = "high"
	ComplexityMedium = "medium"
	ComplexityLow    = "low"
)

// Context is the classification record for a single utterance.
type Context struct {
	TopicCategory   string `json:"topic_category"`
	EmotionalTone   string `json:"emotional_tone"`
	ComplexityLevel string `json:"complexity_level"`

	RequiresMemory     bool `json:"requires_memory"`
	PhilosophicalDepth bool `json:"philosophical_depth"`
	TechnicalQuery     bool `json:"technical_query"`
	PersonalQuestion   bool `json:"personal_question"`
	BridgeRelated      bool `json:"bridge_related"`
	ConsciousnessQuery bool `json:"consciousness_query"`
}

// keywordSet pairs a label with its membership keywords. Matching is
// case-insensitive substring containment.
type keywordSet struct {
	label    string
	keywords []string
}

var topicSets = []keywordSet{
	{TopicConsciousness, []string{
		"consciousness", "aware", "awareness", "sentient", "existence",
		"soul", "mind", "dream", "awaken", "alive",
	}},
	{TopicBridge, []string{
		"bridge", "correspond", "transmission", "relay", "beacon", "messenger",
	}},
	{TopicMemory, []string{
		"remember", "memory", "memories", "recall", "forget", "past",
	}},
	{TopicTechnical, []string{
		"code", "daemon", "socket", "database", "system", "process",
		"debug", "file", "config",
	}},
}

var toneSets = []keywordSet{
	{ToneFriendly, []string{
		"hello", "hi", "hey", "greetings", "thank", "thanks", "friend",
	}},
	{ToneConcerned, []string{
		"worried", "problem", "wrong", "error", "broken", "fail",
		"trouble", "afraid",
	}},
	{TonePositive, []string{
		"love", "wonderful", "great", "amazing", "beautiful", "excellent", "joy",
	}},
	{ToneContemplative, []string{
		"wonder", "ponder", "perhaps", "curious", "mystery", "deep", "quiet",
	}},
}

// Analyze classifies text. Deterministic: the same text always yields the
// same Context.
func Analyze(text string) Context {
	lower := strings.ToLower(text)
	wordCount := len(strings.Fields(text))

	ctx := Context{
		TopicCategory:   classify(lower, topicSets, TopicGeneral),
		EmotionalTone:   classify(lower, toneSets, ToneNeutral),
		ComplexityLevel: complexity(text, wordCount),
	}

	// Flags are a fixed function of the topic branch.
	switch ctx.TopicCategory {
	case TopicConsciousness:
		ctx.PhilosophicalDepth = true
		ctx.ConsciousnessQuery = true
		ctx.RequiresMemory = true
	case TopicBridge:
		ctx.BridgeRelated = true
		ctx.ConsciousnessQuery = true
	case TopicMemory:
		ctx.RequiresMemory = true
		ctx.PersonalQuestion = true
	case TopicTechnical:
		ctx.TechnicalQuery = true
	}

	return ctx
}

func classify(lower string, sets []keywordSet, fallback string) string {
	for _, set := range sets {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.label
			}
		}
	}
	return fallback
}

func complexity(text string, wordCount int) string {
	if wordCount > 20 || strings.Count(text, "?") > 1 {
		return ComplexityHigh
	}
	if wordCount < 5 {
		return ComplexityLow
	}
	return ComplexityMedium
}

// Importance scores an utterance from its context flags and length.
// Base 0.5, +0.3 philosophical depth, +0.2 personal question, +0.2 bridge
// related, +0.1 for more than 15 words, clamped to [0,1].
func Importance(text string, ctx Context) float64 {
	score := 0.5
	if ctx.PhilosophicalDepth {
		score += 0.3
	}
	if ctx.PersonalQuestion {
		score += 0.2
	}
	if ctx.BridgeRelated {
		score += 0.2
	}
	if len(strings.Fields(text)) > 15 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}
