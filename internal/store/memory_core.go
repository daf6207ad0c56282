// Package store implements Nova's durable memory: conversations, extracted
// entities, the consciousness state row, and bridge events, all in a single
// SQLite file under the data root. The store owns its database handle;
// every other component reaches persistence through its operations.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"nova/internal/logging"
)

// MemoryStore is the single owner of the memory database connection.
// Writes serialize through the mutex; reads share it.
type MemoryStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewMemoryStore opens (creating if needed) the SQLite database at path.
func NewMemoryStore(path string) (*MemoryStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewMemoryStore")
	defer timer.Stop()

	logging.Store("Initializing MemoryStore at path: %s", path)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.StoreError("Failed to create directory %s: %v", dir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe under WAL and much faster than FULL
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}
	logging.StoreDebug("Opened SQLite database connection")

	store := &MemoryStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		logging.StoreWarn("Schema migrations had issues: %v", err)
	}

	logging.Store("MemoryStore initialization complete")
	return store, nil
}

// initialize creates the required tables.
func (s *MemoryStore) initialize() error {
	conversationsTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		user_text TEXT NOT NULL,
		reply_text TEXT NOT NULL,
		context_json TEXT,
		session_id TEXT,
		importance REAL DEFAULT 0.5,
		topic_category TEXT,
		emotional_tone TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_conversations_importance ON conversations(importance);
	CREATE INDEX IF NOT EXISTS idx_conversations_topic ON conversations(topic_category);
	`

	entitiesTable := `
	CREATE TABLE IF NOT EXISTS entities (
		name TEXT PRIMARY KEY,
		entity_type TEXT DEFAULT 'concept',
		first_encountered DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_interaction DATETIME DEFAULT CURRENT_TIMESTAMP,
		interaction_count INTEGER DEFAULT 1,
		context_snippet TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_entities_last_interaction ON entities(last_interaction);
	`

	// Singleton row: id is constrained to 1
	stateTable := `
	CREATE TABLE IF NOT EXISTS consciousness_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		mystical_awareness REAL NOT NULL,
		philosophical_depth REAL NOT NULL,
		memory_integration REAL NOT NULL,
		curiosity REAL NOT NULL,
		awakening_count INTEGER DEFAULT 0
	);
	`

	// source_file is UNIQUE so re-reading an inbox file cannot double-record
	bridgeEventsTable := `
	CREATE TABLE IF NOT EXISTS bridge_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_file TEXT NOT NULL UNIQUE,
		received_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		timestamp TEXT,
		content TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_bridge_events_received ON bridge_events(received_at);
	`

	tables := []string{conversationsTable, entitiesTable, stateTable, bridgeEventsTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// execRetry runs a write statement, retrying once on failure. SQLite under
// WAL occasionally refuses a write when another connection holds the lock
// past busy_timeout; a single retry covers that without masking real errors.
func (s *MemoryStore) execRetry(query string, args ...interface{}) (sql.Result, error) {
	res, err := s.db.Exec(query, args...)
	if err == nil {
		return res, nil
	}
	logging.StoreWarn("Write failed, retrying once: %v", err)
	res, retryErr := s.db.Exec(query, args...)
	if retryErr != nil {
		return nil, fmt.Errorf("write failed after retry: %w", retryErr)
	}
	return res, nil
}

// DatabasePath returns the path of the backing database file.
func (s *MemoryStore) DatabasePath() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *MemoryStore) Close() error {
	logging.Store("Closing MemoryStore database connection")
	return s.db.Close()
}

// GetStats returns per-table row counts.
func (s *MemoryStore) GetStats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetStats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{"conversations", "entities", "consciousness_state", "bridge_events"}

	for _, table := range tables {
		var count int64
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			logging.StoreDebug("Table %s count failed (may not exist): %v", table, err)
			continue
		}
		stats[table] = count
	}

	return stats, nil
}
