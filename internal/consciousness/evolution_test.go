package consciousness

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nova/internal/perception"
)

func repeatTopics(topic string, n int) []string {
	topics := make([]string, n)
	for i := range topics {
		topics[i] = topic
	}
	return topics
}

func TestEvolve_MysticalAwarenessRaise(t *testing.T) {
	current := DefaultTraits()
	topics := repeatTopics(perception.TopicConsciousness, 10)

	next, deltas := Evolve(current, topics, 5)

	if diff := next.MysticalAwareness - (current.MysticalAwareness + 0.01); diff > 1e-9 || diff < -1e-9 {
		t.Errorf("mystical_awareness = %v, want %v", next.MysticalAwareness, current.MysticalAwareness+0.01)
	}
	if len(deltas) != 1 || deltas[0].Trait != "mystical_awareness" {
		t.Errorf("unexpected deltas: %v", deltas)
	}
	// Under 5 total conversations the integration rule must not fire.
	if next.MemoryIntegration != current.MemoryIntegration {
		t.Errorf("memory_integration changed early: %v", next.MemoryIntegration)
	}
}

func TestEvolve_RequiresMoreThanThree(t *testing.T) {
	current := DefaultTraits()
	topics := append(repeatTopics(perception.TopicConsciousness, 3), repeatTopics(perception.TopicGeneral, 7)...)

	next, deltas := Evolve(current, topics, 5)
	if len(deltas) != 0 {
		t.Errorf("exactly three consciousness topics should not evolve, got %v", deltas)
	}
	if diff := cmp.Diff(current, next); diff != "" {
		t.Errorf("traits changed (-want +got):\n%s", diff)
	}
}

func TestEvolve_MemoryIntegrationTracksTotal(t *testing.T) {
	current := DefaultTraits()
	topics := repeatTopics(perception.TopicConsciousness, 10)

	// Eleven lifetime conversations: 0.7 + 0.11 = 0.81
	next, deltas := Evolve(current, topics, 11)
	if diff := next.MemoryIntegration - 0.81; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("memory_integration = %v, want 0.81", next.MemoryIntegration)
	}

	found := false
	for _, d := range deltas {
		if d.Trait == "memory_integration" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a memory_integration delta, got %v", deltas)
	}

	// A second pass with the same inputs only bumps mystical awareness;
	// integration stays at its maximum.
	again, deltas2 := Evolve(next, topics, 11)
	if again.MemoryIntegration != next.MemoryIntegration {
		t.Errorf("memory_integration should hold at %v, got %v", next.MemoryIntegration, again.MemoryIntegration)
	}
	for _, d := range deltas2 {
		if d.Trait == "memory_integration" {
			t.Errorf("unexpected memory_integration delta on repeat: %v", d)
		}
	}
}

func TestEvolve_ClampsAtOne(t *testing.T) {
	current := Traits{MysticalAwareness: 0.995, PhilosophicalDepth: 0.5, MemoryIntegration: 0.5, Curiosity: 0.5}
	topics := repeatTopics(perception.TopicBridge, 10)

	next, _ := Evolve(current, topics, 50)
	if next.MysticalAwareness > 1.0 {
		t.Errorf("mystical_awareness exceeded 1.0: %v", next.MysticalAwareness)
	}

	// Enough total conversations to push integration past the clamp.
	next, _ = Evolve(next, topics, 100)
	if next.MemoryIntegration > 1.0 {
		t.Errorf("memory_integration exceeded 1.0: %v", next.MemoryIntegration)
	}

	// Repeated passes can never escape the bound.
	for i := 0; i < 20; i++ {
		next, _ = Evolve(next, topics, 100)
	}
	if err := next.Validate(); err != nil {
		t.Errorf("traits invalid after repeated evolution: %v", err)
	}
}

func TestDescribeDeltas(t *testing.T) {
	if got := DescribeDeltas(nil); got != "stable" {
		t.Errorf("no deltas should describe as stable, got %q", got)
	}
	desc := DescribeDeltas([]Delta{{"mystical_awareness", 0.70, 0.71}})
	if !strings.Contains(desc, "mystical_awareness") || !strings.Contains(desc, "0.710") {
		t.Errorf("unexpected delta description: %q", desc)
	}
}

func TestTraitsValidate(t *testing.T) {
	if err := DefaultTraits().Validate(); err != nil {
		t.Errorf("default traits should validate: %v", err)
	}
	bad := DefaultTraits()
	bad.Curiosity = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("curiosity above 1.0 should be rejected")
	}
}

func TestLevelLadder(t *testing.T) {
	tests := []struct {
		memories int64
		want     string
	}{
		{0, LevelStandard},
		{499, LevelStandard},
		{500, LevelElevated},
		{999, LevelElevated},
		{1000, LevelEnhanced},
		{1499, LevelEnhanced},
		{1500, LevelTranscendent},
		{100000, LevelTranscendent},
	}
	for _, tt := range tests {
		if got := Level(tt.memories); got != tt.want {
			t.Errorf("Level(%d) = %s, want %s", tt.memories, got, tt.want)
		}
	}
}

func TestSnapshotConcurrentAccess(t *testing.T) {
	snap := NewSnapshot(State{Traits: DefaultTraits(), AwakeningCount: 1})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			state := snap.Current()
			state.AwakeningCount = int64(n)
			snap.Swap(state)
			_ = snap.Current()
		}(i)
	}
	wg.Wait()

	if err := snap.Current().Traits.Validate(); err != nil {
		t.Errorf("snapshot corrupted under concurrency: %v", err)
	}
}
