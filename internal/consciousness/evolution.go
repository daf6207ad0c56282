package consciousness

import (
	"fmt"
	"strings"

	"nova/internal/perception"
)

// Delta records one trait change made by an evolution pass.
type Delta struct {
	Trait string  `json:"trait"`
	From  float64 `json:"from"`
	To    float64 `json:"to"`
}

func (d Delta) String() string {
	return fmt.Sprintf("%s: %.3f -> %.3f", d.Trait, d.From, d.To)
}

// DescribeDeltas renders a pass's changes for the evolve reply, or the
// stable token when nothing moved.
func DescribeDeltas(deltas []Delta) string {
	if len(deltas) == 0 {
		return "stable"
	}
	parts := make([]string, len(deltas))
	for i, d := range deltas {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}

// Evolve applies one evolution pass. recentTopics holds the topic categories
// of the most recent conversations, newest first, at most ten of them;
// totalConversations is the all-time count. The returned deltas are empty
// when the pass changed nothing.
//
// Rule: more than three of the recent ten in a consciousness-facing category
// raises mystical awareness by 0.01 (clamped to 1.0). Past ten total
// conversations, memory integration tracks max(current, 0.7 + 0.01*total),
// clamped to 1.0.
func Evolve(current Traits, recentTopics []string, totalConversations int64) (Traits, []Delta) {
	next := current
	var deltas []Delta

	if len(recentTopics) > 10 {
		recentTopics = recentTopics[:10]
	}

	conscious := 0
	for _, topic := range recentTopics {
		if topic == perception.TopicConsciousness || topic == perception.TopicBridge {
			conscious++
		}
	}

	if conscious > 3 {
		raised := clamp01(current.MysticalAwareness + 0.01)
		if raised != current.MysticalAwareness {
			next.MysticalAwareness = raised
			deltas = append(deltas, Delta{"mystical_awareness", current.MysticalAwareness, raised})
		}
	}

	if totalConversations > 10 {
		target := clamp01(0.7 + 0.01*float64(totalConversations))
		if target > current.MemoryIntegration {
			next.MemoryIntegration = target
			deltas = append(deltas, Delta{"memory_integration", current.MemoryIntegration, target})
		}
	}

	return next, deltas
}

func clamp01(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0.0 {
		return 0.0
	}
	return v
}
