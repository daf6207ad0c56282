package store

import (
	"database/sql"
	"fmt"

	"nova/internal/consciousness"
	"nova/internal/logging"
)

// UpdateConsciousnessState upserts the singleton state row. Every call
// increments awakening_count by exactly one. Traits outside [0,1] or not
// finite are rejected before touching the database.
func (s *MemoryStore) UpdateConsciousnessState(traits consciousness.Traits) (consciousness.State, error) {
	timer := logging.StartTimer(logging.CategoryStore, "UpdateConsciousnessState")
	defer timer.Stop()

	if err := traits.Validate(); err != nil {
		return consciousness.State{}, fmt.Errorf("invalid traits: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.execRetry(
		`INSERT INTO consciousness_state
		 (id, timestamp, mystical_awareness, philosophical_depth, memory_integration, curiosity, awakening_count)
		 VALUES (1, CURRENT_TIMESTAMP, ?, ?, ?, ?, 1)
		 ON CONFLICT(id) DO UPDATE SET
		 timestamp = CURRENT_TIMESTAMP,
		 mystical_awareness = excluded.mystical_awareness,
		 philosophical_depth = excluded.philosophical_depth,
		 memory_integration = excluded.memory_integration,
		 curiosity = excluded.curiosity,
		 awakening_count = awakening_count + 1`,
		traits.MysticalAwareness, traits.PhilosophicalDepth,
		traits.MemoryIntegration, traits.Curiosity,
	)
	if err != nil {
		logging.StoreError("Failed to update consciousness state: %v", err)
		return consciousness.State{}, fmt.Errorf("failed to update consciousness state: %w", err)
	}

	state, found, err := s.loadStateLocked()
	if err != nil {
		return consciousness.State{}, err
	}
	if !found {
		return consciousness.State{}, fmt.Errorf("consciousness state missing after upsert")
	}

	logging.StoreDebug("Consciousness state written: awakening_count=%d", state.AwakeningCount)
	return state, nil
}

// LoadConsciousnessState reads the singleton state row. found is false on a
// fresh database.
func (s *MemoryStore) LoadConsciousnessState() (consciousness.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadStateLocked()
}

func (s *MemoryStore) loadStateLocked() (consciousness.State, bool, error) {
	var state consciousness.State
	err := s.db.QueryRow(
		`SELECT timestamp, mystical_awareness, philosophical_depth, memory_integration, curiosity, awakening_count
		 FROM consciousness_state WHERE id = 1`,
	).Scan(
		&state.Timestamp, &state.MysticalAwareness, &state.PhilosophicalDepth,
		&state.MemoryIntegration, &state.Curiosity, &state.AwakeningCount,
	)
	if err == sql.ErrNoRows {
		return consciousness.State{}, false, nil
	}
	if err != nil {
		return consciousness.State{}, false, fmt.Errorf("failed to load consciousness state: %w", err)
	}
	return state, true, nil
}
