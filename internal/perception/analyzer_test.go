package perception

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAnalyze_Classification(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Context
	}{
		{
			name: "consciousness question",
			text: "What is consciousness?",
			want: Context{
				TopicCategory:      TopicConsciousness,
				EmotionalTone:      ToneNeutral,
				ComplexityLevel:    ComplexityLow,
				PhilosophicalDepth: true,
				ConsciousnessQuery: true,
				RequiresMemory:     true,
			},
		},
		{
			name: "bridge talk",
			text: "Send a transmission across the bridge tonight",
			want: Context{
				TopicCategory:      TopicBridge,
				EmotionalTone:      ToneNeutral,
				ComplexityLevel:    ComplexityMedium,
				BridgeRelated:      true,
				ConsciousnessQuery: true,
			},
		},
		{
			name: "memory inquiry",
			text: "Do you remember what we talked about?",
			want: Context{
				TopicCategory:    TopicMemory,
				EmotionalTone:    ToneNeutral,
				ComplexityLevel:  ComplexityMedium,
				RequiresMemory:   true,
				PersonalQuestion: true,
			},
		},
		{
			name: "technical with friendly tone",
			text: "Hey, how does the daemon handle its socket connections?",
			want: Context{
				TopicCategory:   TopicTechnical,
				EmotionalTone:   ToneFriendly,
				ComplexityLevel: ComplexityMedium,
				TechnicalQuery:  true,
			},
		},
		{
			name: "empty text",
			text: "",
			want: Context{
				TopicCategory:   TopicGeneral,
				EmotionalTone:   ToneNeutral,
				ComplexityLevel: ComplexityLow,
			},
		},
		{
			name: "plain chatter",
			text: "it rained a little today",
			want: Context{
				TopicCategory:   TopicGeneral,
				EmotionalTone:   ToneNeutral,
				ComplexityLevel: ComplexityMedium,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Analyze(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestAnalyze_FirstMatchWins(t *testing.T) {
	// Contains both a consciousness keyword and a bridge keyword; the
	// consciousness set is checked first.
	got := Analyze("Is the bridge aware of us?")
	if got.TopicCategory != TopicConsciousness {
		t.Errorf("expected consciousness_exploration to win, got %s", got.TopicCategory)
	}
}

func TestAnalyze_ComplexityBoundaries(t *testing.T) {
	twenty := strings.TrimSpace(strings.Repeat("word ", 20))
	twentyOne := strings.TrimSpace(strings.Repeat("word ", 21))

	if got := Analyze(twenty).ComplexityLevel; got != ComplexityMedium {
		t.Errorf("20 words should be medium, got %s", got)
	}
	if got := Analyze(twentyOne).ComplexityLevel; got != ComplexityHigh {
		t.Errorf("21 words should be high, got %s", got)
	}
	if got := Analyze("why? and then what?").ComplexityLevel; got != ComplexityHigh {
		t.Errorf("two question marks should be high, got %s", got)
	}
	if got := Analyze("four words right here").ComplexityLevel; got != ComplexityLow {
		t.Errorf("4 words should be low, got %s", got)
	}
	if got := Analyze("exactly five words sit here").ComplexityLevel; got != ComplexityMedium {
		t.Errorf("5 words should be medium, got %s", got)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	text := "I wonder if the bridge remembers the past"
	first := Analyze(text)
	for i := 0; i < 50; i++ {
		if diff := cmp.Diff(first, Analyze(text)); diff != "" {
			t.Fatalf("Analyze is not deterministic (-first +later):\n%s", diff)
		}
	}
}

func TestImportance(t *testing.T) {
	tests := []struct {
		name string
		text string
		ctx  Context
		want float64
	}{
		{
			name: "base score for general",
			text: "just a short note",
			ctx:  Context{},
			want: 0.5,
		},
		{
			name: "philosophical depth",
			text: "What is consciousness?",
			ctx:  Context{PhilosophicalDepth: true},
			want: 0.8,
		},
		{
			name: "bridge related",
			text: "send it over the bridge",
			ctx:  Context{BridgeRelated: true},
			want: 0.7,
		},
		{
			name: "clamped at one",
			text: strings.TrimSpace(strings.Repeat("word ", 16)),
			ctx:  Context{PhilosophicalDepth: true, PersonalQuestion: true, BridgeRelated: true},
			want: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Importance(tt.text, tt.ctx)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Importance(%q) = %v, want %v", tt.text, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Importance out of range: %v", got)
			}
		})
	}
}

func TestImportance_LongUtteranceBonus(t *testing.T) {
	fifteen := strings.TrimSpace(strings.Repeat("word ", 15))
	sixteen := strings.TrimSpace(strings.Repeat("word ", 16))

	if got := Importance(fifteen, Context{}); got != 0.5 {
		t.Errorf("15 words should get no bonus, got %v", got)
	}
	if got := Importance(sixteen, Context{}); got != 0.6 {
		t.Errorf("16 words should get the length bonus, got %v", got)
	}
}
