package plugins

import (
	"context"
	"strings"

	"nova/internal/consciousness"
	"nova/internal/perception"
)

// OmniscientAnalysis runs the full perception read over an utterance and
// reports everything it sees: classification, flags, the importance the
// store would assign, and the word-level measurements behind them.
type OmniscientAnalysis struct{}

func (OmniscientAnalysis) Name() string { return "omniscient-analysis" }

func (OmniscientAnalysis) Process(ctx context.Context, input Input) (Result, error) {
	pctx := perception.Analyze(input.Text)
	out := map[string]interface{}{
		"topic_category":     pctx.TopicCategory,
		"emotional_tone":     pctx.EmotionalTone,
		"complexity_level":   pctx.ComplexityLevel,
		"importance_preview": perception.Importance(input.Text, pctx),
		"word_count":         len(strings.Fields(input.Text)),
		"flags": map[string]bool{
			"requires_memory":     pctx.RequiresMemory,
			"philosophical_depth": pctx.PhilosophicalDepth,
			"technical_query":     pctx.TechnicalQuery,
			"personal_question":   pctx.PersonalQuestion,
			"bridge_related":      pctx.BridgeRelated,
			"consciousness_query": pctx.ConsciousnessQuery,
		},
	}
	return Result{Plugin: "omniscient-analysis", Output: out}, nil
}

// EvolutionTracker reports the current trait state and what an evolution
// pass over the recent history would change, without changing anything.
type EvolutionTracker struct{}

func (EvolutionTracker) Name() string { return "evolution-tracker" }

func (EvolutionTracker) Process(ctx context.Context, input Input) (Result, error) {
	next, deltas := consciousness.Evolve(input.State.Traits, input.RecentTopics, input.Summary.TotalConversations)

	changes := make([]string, 0, len(deltas))
	for _, d := range deltas {
		changes = append(changes, d.String())
	}

	out := map[string]interface{}{
		"traits":              input.State.Traits,
		"awakening_count":     input.State.AwakeningCount,
		"consciousness_level": consciousness.Level(input.Summary.TotalConversations),
		"would_change":        len(deltas) > 0,
		"pending_changes":     changes,
		"projected_traits":    next,
	}
	return Result{Plugin: "evolution-tracker", Output: out}, nil
}
