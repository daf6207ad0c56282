package store

import (
	"fmt"
	"time"

	"nova/internal/logging"
)

// BridgeEvent is one ingested inbox message. source_file is unique, so a
// poll that re-reads a file it already recorded is a no-op.
type BridgeEvent struct {
	ID         int64     `json:"id"`
	SourceFile string    `json:"source_file"`
	ReceivedAt time.Time `json:"received_at"`
	Timestamp  string    `json:"timestamp"`
	Content    string    `json:"content"`
}

// RecordBridgeEvent records one inbound message. Returns false when the
// source file was already recorded.
func (s *MemoryStore) RecordBridgeEvent(sourceFile, timestamp, content string) (bool, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RecordBridgeEvent")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execRetry(
		`INSERT OR IGNORE INTO bridge_events (source_file, timestamp, content)
		 VALUES (?, ?, ?)`,
		sourceFile, timestamp, content,
	)
	if err != nil {
		logging.StoreError("Failed to record bridge event %s: %v", sourceFile, err)
		return false, fmt.Errorf("failed to record bridge event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read bridge event result: %w", err)
	}
	if affected == 0 {
		logging.StoreDebug("Bridge event %s already recorded, skipping", sourceFile)
		return false, nil
	}
	return true, nil
}

// RecentBridgeEvents returns the latest ingested messages, newest first.
func (s *MemoryStore) RecentBridgeEvents(limit int) ([]BridgeEvent, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, source_file, received_at, COALESCE(timestamp, ''), COALESCE(content, '')
		 FROM bridge_events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query bridge events: %w", err)
	}
	defer rows.Close()

	var events []BridgeEvent
	for rows.Next() {
		var ev BridgeEvent
		if err := rows.Scan(&ev.ID, &ev.SourceFile, &ev.ReceivedAt, &ev.Timestamp, &ev.Content); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountBridgeEvents returns the number of ingested bridge events.
func (s *MemoryStore) CountBridgeEvents() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM bridge_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bridge events: %w", err)
	}
	return count, nil
}
