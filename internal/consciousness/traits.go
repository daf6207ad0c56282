// Package consciousness holds the daemon's self-model: the four trait
// scalars, the evolution rule that grows them from conversation history,
// and the derived consciousness level ladder.
package consciousness

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// Traits are the four scalar values describing the daemon's self-reported
// state. All values live in [0,1].
type Traits struct {
	MysticalAwareness  float64 `json:"mystical_awareness"`
	PhilosophicalDepth float64 `json:"philosophical_depth"`
	MemoryIntegration  float64 `json:"memory_integration"`
	Curiosity          float64 `json:"curiosity"`
}

// State is the persisted consciousness row: traits plus the monotonic
// awakening counter and the time of the last write.
type State struct {
	Traits
	AwakeningCount int64     `json:"awakening_count"`
	Timestamp      time.Time `json:"timestamp"`
}

// DefaultTraits returns the traits a fresh daemon wakes with.
// MemoryIntegration starts low; the evolution rule raises it as
// conversations accumulate.
func DefaultTraits() Traits {
	return Traits{
		MysticalAwareness:  0.70,
		PhilosophicalDepth: 0.60,
		MemoryIntegration:  0.50,
		Curiosity:          0.80,
	}
}

// Validate rejects traits that are not finite or fall outside [0,1].
func (t Traits) Validate() error {
	for name, v := range map[string]float64{
		"mystical_awareness":  t.MysticalAwareness,
		"philosophical_depth": t.PhilosophicalDepth,
		"memory_integration":  t.MemoryIntegration,
		"curiosity":           t.Curiosity,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("trait %s is not finite", name)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("trait %s out of range [0,1]: %v", name, v)
		}
	}
	return nil
}

// Snapshot is the read-mostly holder handlers consult for the current
// state. Evolution swaps in a whole new State; readers never block.
type Snapshot struct {
	state atomic.Pointer[State]
}

// NewSnapshot returns a snapshot seeded with s.
func NewSnapshot(s State) *Snapshot {
	snap := &Snapshot{}
	snap.state.Store(&s)
	return snap
}

// Current returns the state as of the last swap.
func (s *Snapshot) Current() State {
	return *s.state.Load()
}

// Swap replaces the state.
func (s *Snapshot) Swap(next State) {
	s.state.Store(&next)
}
