package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"nova/internal/logging"
	"nova/internal/perception"
)

// ConversationRecord is one stored exchange. Records are immutable after
// write and are never deleted by the daemon.
type ConversationRecord struct {
	ID            int64              `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	UserText      string             `json:"user_text"`
	ReplyText     string             `json:"reply_text"`
	Context       perception.Context `json:"context"`
	TopicCategory string             `json:"topic_category"`
}

// Summary is the live view of the memory store that feeds replies and the
// consciousness level.
type Summary struct {
	TotalConversations  int64    `json:"total_conversations"`
	ImportantMemories   int64    `json:"important_memories"`
	RecentConversations int64    `json:"recent_conversations"`
	EntitiesKnown       int64    `json:"entities_known"`
	RecentTopics        []string `json:"recent_topics"`
	StorageBytes        int64    `json:"storage_bytes"`
}

// RecordConversation persists one exchange, scoring importance from the
// context and extracting entities from the user text. Returns the new row id.
func (s *MemoryStore) RecordConversation(userText, replyText string, ctx perception.Context, sessionID string) (int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RecordConversation")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	importance := perception.Importance(userText, ctx)

	ctxJSON, err := json.Marshal(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to encode context: %w", err)
	}

	logging.StoreDebug("Recording conversation: topic=%s tone=%s importance=%.2f",
		ctx.TopicCategory, ctx.EmotionalTone, importance)

	res, err := s.execRetry(
		`INSERT INTO conversations
		 (user_text, reply_text, context_json, session_id, importance, topic_category, emotional_tone)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userText, replyText, string(ctxJSON), nullableString(sessionID),
		importance, ctx.TopicCategory, ctx.EmotionalTone,
	)
	if err != nil {
		logging.StoreError("Failed to record conversation: %v", err)
		return 0, fmt.Errorf("failed to record conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read conversation id: %w", err)
	}

	// Entity extraction rides the same lock. A failed upsert does not undo
	// the durable conversation row.
	if err := s.upsertEntities(userText); err != nil {
		logging.StoreWarn("Entity extraction failed for conversation %d: %v", id, err)
	}

	return id, nil
}

// GetMemorySummary computes the summary counters. Safe to call concurrently
// with writes; individual counter failures are logged and left at zero so a
// degraded read never blocks a reply.
func (s *MemoryStore) GetMemorySummary() (Summary, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetMemorySummary")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary Summary

	if err := s.db.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&summary.TotalConversations); err != nil {
		logging.StoreError("Summary total count failed: %v", err)
		return Summary{}, fmt.Errorf("failed to count conversations: %w", err)
	}

	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM conversations WHERE importance >= 0.7",
	).Scan(&summary.ImportantMemories); err != nil {
		logging.StoreWarn("Summary important count failed: %v", err)
	}

	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM conversations WHERE timestamp >= datetime('now', '-1 day')",
	).Scan(&summary.RecentConversations); err != nil {
		logging.StoreWarn("Summary recent count failed: %v", err)
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM entities").Scan(&summary.EntitiesKnown); err != nil {
		logging.StoreWarn("Summary entity count failed: %v", err)
	}

	rows, err := s.db.Query(
		"SELECT topic_category FROM conversations ORDER BY id DESC LIMIT 5",
	)
	if err != nil {
		logging.StoreWarn("Summary topics query failed: %v", err)
	} else {
		defer rows.Close()
		for rows.Next() {
			var topic string
			if err := rows.Scan(&topic); err != nil {
				continue
			}
			if topic != "" {
				summary.RecentTopics = append(summary.RecentTopics, topic)
			}
		}
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		summary.StorageBytes = info.Size()
	}

	return summary, nil
}

// GetConversationContext returns the most recent conversations, newest
// first, bounded by limit.
func (s *MemoryStore) GetConversationContext(limit int) ([]ConversationRecord, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetConversationContext")
	defer timer.Stop()

	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, timestamp, user_text, reply_text, context_json, topic_category
		 FROM conversations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var records []ConversationRecord
	for rows.Next() {
		var rec ConversationRecord
		var ctxJSON, topic sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.UserText, &rec.ReplyText, &ctxJSON, &topic); err != nil {
			logging.StoreWarn("Failed to scan conversation row: %v", err)
			continue
		}
		if ctxJSON.Valid && ctxJSON.String != "" {
			if err := json.Unmarshal([]byte(ctxJSON.String), &rec.Context); err != nil {
				logging.StoreDebug("Unparseable context blob on conversation %d: %v", rec.ID, err)
			}
		}
		rec.TopicCategory = topic.String
		records = append(records, rec)
	}

	return records, rows.Err()
}

// RecentTopicCategories returns the topic categories of the most recent
// conversations, newest first. Evolution feeds on this.
func (s *MemoryStore) RecentTopicCategories(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT topic_category FROM conversations ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var topic sql.NullString
		if err := rows.Scan(&topic); err != nil {
			continue
		}
		topics = append(topics, topic.String)
	}
	return topics, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
