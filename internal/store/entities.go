package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"nova/internal/logging"
)

// Entity is a name Nova has seen in conversation, with interaction tracking.
type Entity struct {
	Name             string    `json:"name"`
	EntityType       string    `json:"entity_type"`
	FirstEncountered time.Time `json:"first_encountered"`
	LastInteraction  time.Time `json:"last_interaction"`
	InteractionCount int64     `json:"interaction_count"`
	ContextSnippet   string    `json:"context_snippet,omitempty"`
}

// ExtractEntities applies the title-case heuristic to an utterance. The
// first token is skipped: sentence-initial capitalization carries no signal.
// Every later whitespace-delimited token that starts with an uppercase
// letter and keeps more than two characters after trailing punctuation is
// trimmed becomes a candidate.
func ExtractEntities(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return nil
	}

	var names []string
	seen := make(map[string]bool)
	for _, token := range tokens[1:] {
		name := strings.TrimRight(token, ".,!?;:")
		if utf8.RuneCountInString(name) <= 2 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(name)
		if !unicode.IsUpper(first) {
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// upsertEntities extracts candidates from text and upserts each one.
// Caller holds the write lock.
func (s *MemoryStore) upsertEntities(text string) error {
	names := ExtractEntities(text)
	if len(names) == 0 {
		return nil
	}

	snippet := text
	if len(snippet) > 120 {
		snippet = snippet[:120]
	}

	for _, name := range names {
		_, err := s.execRetry(
			`INSERT INTO entities (name, entity_type, context_snippet)
			 VALUES (?, 'concept', ?)
			 ON CONFLICT(name) DO UPDATE SET
			 interaction_count = interaction_count + 1,
			 last_interaction = CURRENT_TIMESTAMP`,
			name, snippet,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert entity %q: %w", name, err)
		}
	}

	logging.StoreDebug("Upserted %d entities", len(names))
	return nil
}

// GetEntity returns a single entity by name.
func (s *MemoryStore) GetEntity(name string) (Entity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Entity
	var snippet sql.NullString
	err := s.db.QueryRow(
		`SELECT name, entity_type, first_encountered, last_interaction, interaction_count, context_snippet
		 FROM entities WHERE name = ?`, name,
	).Scan(&e.Name, &e.EntityType, &e.FirstEncountered, &e.LastInteraction, &e.InteractionCount, &snippet)
	if err == sql.ErrNoRows {
		return Entity{}, false, nil
	}
	if err != nil {
		return Entity{}, false, fmt.Errorf("failed to load entity %q: %w", name, err)
	}
	e.ContextSnippet = snippet.String
	return e, true, nil
}

// TopEntities returns the most-interacted entities, most active first.
func (s *MemoryStore) TopEntities(limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT name, entity_type, first_encountered, last_interaction, interaction_count, context_snippet
		 FROM entities ORDER BY interaction_count DESC, last_interaction DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		var snippet sql.NullString
		if err := rows.Scan(&e.Name, &e.EntityType, &e.FirstEncountered, &e.LastInteraction, &e.InteractionCount, &snippet); err != nil {
			continue
		}
		e.ContextSnippet = snippet.String
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
