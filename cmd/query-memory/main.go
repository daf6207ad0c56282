// query-memory is a standalone read-only inspector for the daemon's memory
// database. It never writes; point it at a live database while the daemon
// runs, or at a copy.
//
// Usage:
//
//	query-memory [db-path] [limit]
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

func main() {
	dbPath := defaultDBPath()
	limit := 10

	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			limit = n
		}
	}

	if _, err := os.Stat(dbPath); err != nil {
		fmt.Printf("No memory database at %s\n", dbPath)
		os.Exit(1)
	}

	fmt.Printf("=== %s ===\n", dbPath)
	inspect(dbPath, limit)
}

func defaultDBPath() string {
	root := os.Getenv("NOVA_DATA_ROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "nova_memory.db"
		}
		root = filepath.Join(home, ".nova")
	}
	return filepath.Join(root, "nova_memory.db")
}

func inspect(dbPath string, limit int) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		fmt.Printf("Error opening DB: %v\n", err)
		return
	}
	defer db.Close()

	// Tables and row counts
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		fmt.Printf("Error querying tables: %v\n", err)
		return
	}
	var tables []string
	for rows.Next() {
		var name string
		rows.Scan(&name)
		tables = append(tables, name)
	}
	rows.Close()

	fmt.Println("\nTables:")
	for _, table := range tables {
		var count int
		db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		fmt.Printf("  %-22s %d rows\n", table, count)
	}

	showState(db)
	showConversations(db, limit)
	showEntities(db, limit)
	showBridgeEvents(db, limit)
}

func showState(db *sql.DB) {
	var timestamp string
	var mystical, philosophical, memory, curiosity float64
	var awakenings int64
	err := db.QueryRow(`SELECT timestamp, mystical_awareness, philosophical_depth,
		memory_integration, curiosity, awakening_count
		FROM consciousness_state WHERE id = 1`).
		Scan(&timestamp, &mystical, &philosophical, &memory, &curiosity, &awakenings)
	if err == sql.ErrNoRows {
		fmt.Println("\nConsciousness state: not yet persisted")
		return
	}
	if err != nil {
		fmt.Printf("\nError reading consciousness state: %v\n", err)
		return
	}

	fmt.Println("\nConsciousness state:")
	fmt.Printf("  mystical_awareness   %.3f\n", mystical)
	fmt.Printf("  philosophical_depth  %.3f\n", philosophical)
	fmt.Printf("  memory_integration   %.3f\n", memory)
	fmt.Printf("  curiosity            %.3f\n", curiosity)
	fmt.Printf("  awakenings           %d (last written %s)\n", awakenings, timestamp)
}

func showConversations(db *sql.DB, limit int) {
	rows, err := db.Query(`SELECT id, timestamp, COALESCE(topic_category, ''), importance, user_text
		FROM conversations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		fmt.Printf("\nError querying conversations: %v\n", err)
		return
	}
	defer rows.Close()

	fmt.Printf("\nRecent conversations (newest first):\n")
	fmt.Println("─────────────────────────────────────────────────────────────")
	any := false
	for rows.Next() {
		var id int64
		var timestamp, topic, text string
		var importance float64
		if err := rows.Scan(&id, &timestamp, &topic, &importance, &text); err != nil {
			fmt.Printf("Scan error: %v\n", err)
			continue
		}
		any = true
		fmt.Printf("%4d. [%s] %-25s imp=%.2f  %s\n", id, timestamp, topic, importance, clip(text, 60))
	}
	if !any {
		fmt.Println("(none)")
	}
}

func showEntities(db *sql.DB, limit int) {
	rows, err := db.Query(`SELECT name, entity_type, interaction_count, last_interaction
		FROM entities ORDER BY interaction_count DESC, name LIMIT ?`, limit)
	if err != nil {
		fmt.Printf("\nError querying entities: %v\n", err)
		return
	}
	defer rows.Close()

	fmt.Printf("\nTop entities:\n")
	any := false
	for rows.Next() {
		var name, typ, last string
		var count int64
		if err := rows.Scan(&name, &typ, &count, &last); err != nil {
			fmt.Printf("Scan error: %v\n", err)
			continue
		}
		any = true
		fmt.Printf("  %-24s %-10s seen %3d times, last %s\n", clip(name, 24), typ, count, last)
	}
	if !any {
		fmt.Println("(none)")
	}
}

func showBridgeEvents(db *sql.DB, limit int) {
	rows, err := db.Query(`SELECT source_file, received_at, COALESCE(content, '')
		FROM bridge_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		fmt.Printf("\nError querying bridge events: %v\n", err)
		return
	}
	defer rows.Close()

	fmt.Printf("\nRecent bridge events:\n")
	any := false
	for rows.Next() {
		var file, received, content string
		if err := rows.Scan(&file, &received, &content); err != nil {
			fmt.Printf("Scan error: %v\n", err)
			continue
		}
		any = true
		fmt.Printf("  %-28s [%s] %s\n", file, received, clip(content, 50))
	}
	if !any {
		fmt.Println("(none)")
	}
}

func clip(s string, l int) string {
	if len(s) > l {
		return s[:l-3] + "..."
	}
	return s
}
