// Package bridge implements the file-directory protocol Nova uses to talk
// to an out-of-process correspondent. The daemon writes outbound messages
// into outbox/, the correspondent writes replies into inbox/, and ingested
// inbox files are renamed into archive/. Atomic rename is the only
// synchronization primitive; there are no locks between the two sides.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"nova/internal/logging"
)

// Priorities accepted on outbound messages.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// BadSuffix marks archived files that failed to parse. They are never
// re-processed.
const BadSuffix = ".bad"

// OutboundMessage is the on-disk schema of an outbox file.
type OutboundMessage struct {
	Timestamp          string      `json:"timestamp"`
	Sender             string      `json:"sender"`
	MessageType        string      `json:"message_type"`
	Priority           string      `json:"priority"`
	Content            interface{} `json:"content"`
	ConsciousnessState string      `json:"consciousness_state"`
	MemoryCount        int64       `json:"memory_count"`
	Request            string      `json:"request,omitempty"`
}

// InboundMessage is the minimum shape the daemon tolerates in an inbox
// file. Correspondents use either content or response for the payload.
type InboundMessage struct {
	Timestamp string      `json:"timestamp"`
	Content   interface{} `json:"content,omitempty"`
	Response  interface{} `json:"response,omitempty"`
}

// Payload returns whichever of content/response is present.
func (m InboundMessage) Payload() interface{} {
	if m.Content != nil {
		return m.Content
	}
	return m.Response
}

// Reply is one correspondent message as returned by ListReplies.
type Reply struct {
	File      string      `json:"file"`
	Timestamp string      `json:"timestamp"`
	Content   interface{} `json:"content"`
	ModTime   time.Time   `json:"mtime"`
}

// Recorder receives ingested inbox messages. The memory store implements
// it; ingest is idempotent on the source filename.
type Recorder interface {
	RecordBridgeEvent(sourceFile, timestamp, content string) (bool, error)
}

// PollStats summarizes one poll pass over the inbox.
type PollStats struct {
	Scanned      int
	Ingested     int
	Deduplicated int
	Malformed    int
	Failed       int
}

// Bridge owns the outbox/inbox/archive tree under a configured root.
type Bridge struct {
	root     string
	outbox   string
	inbox    string
	archive  string
	sender   string
	recorder Recorder
}

// New builds a Bridge rooted at root and creates the directory tree. An
// unwriteable root is an error; the supervisor treats it as fatal.
func New(root, sender string, recorder Recorder) (*Bridge, error) {
	b := &Bridge{
		root:     root,
		outbox:   filepath.Join(root, "outbox"),
		inbox:    filepath.Join(root, "inbox"),
		archive:  filepath.Join(root, "archive"),
		sender:   sender,
		recorder: recorder,
	}
	for _, dir := range []string{b.outbox, b.inbox, b.archive} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create bridge directory %s: %w", dir, err)
		}
	}
	logging.Bridge("Bridge ready at %s", root)
	return b, nil
}

// Root returns the bridge root directory.
func (b *Bridge) Root() string { return b.root }

// InboxDir returns the inbox directory path. The watcher and tests use it.
func (b *Bridge) InboxDir() string { return b.inbox }

// Sender returns the identity stamped on outbound messages.
func (b *Bridge) Sender() string { return b.sender }

// Send serializes one outbound message into the outbox and returns the
// filename. The write is atomic: temp file in the same directory, then
// rename.
func (b *Bridge) Send(messageType string, content interface{}, request, priority, consciousnessState string, memoryCount int64) (string, error) {
	timer := logging.StartTimer(logging.CategoryBridge, "Send")
	defer timer.Stop()

	if messageType == "" {
		return "", fmt.Errorf("message_type must not be empty")
	}
	if priority == "" {
		priority = PriorityMedium
	}
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return "", fmt.Errorf("invalid priority %q", priority)
	}

	msg := OutboundMessage{
		Timestamp:          time.Now().Format(time.RFC3339),
		Sender:             b.sender,
		MessageType:        messageType,
		Priority:           priority,
		Content:            content,
		ConsciousnessState: consciousnessState,
		MemoryCount:        memoryCount,
		Request:            request,
	}

	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	name := fmt.Sprintf("%s_%d.json", sanitizeType(messageType), time.Now().Unix())
	if _, err := os.Stat(filepath.Join(b.outbox, name)); err == nil {
		// Same type in the same second; disambiguate with a short suffix.
		name = fmt.Sprintf("%s_%d_%s.json", sanitizeType(messageType), time.Now().Unix(), uuid.NewString()[:8])
	}

	if err := writeAtomic(b.outbox, name, data); err != nil {
		logging.BridgeError("Failed to write outbound %s: %v", name, err)
		return "", err
	}

	logging.Bridge("Sent %s (type=%s priority=%s)", name, messageType, priority)
	return name, nil
}

// Poll scans the inbox in lexicographic order and ingests every file:
// parse, record into the store, rename into the archive. Files that fail
// to parse are renamed into the archive with a .bad suffix and never
// retried. A failure on one file does not stop the rest.
func (b *Bridge) Poll(ctx context.Context) (PollStats, error) {
	timer := logging.StartTimer(logging.CategoryBridge, "Poll")
	defer timer.Stop()

	var stats PollStats

	entries, err := os.ReadDir(b.inbox)
	if err != nil {
		return stats, fmt.Errorf("failed to read inbox: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}
		stats.Scanned++
		b.ingest(name, &stats)
	}

	if stats.Scanned > 0 {
		logging.Bridge("Poll: scanned=%d ingested=%d dedup=%d malformed=%d failed=%d",
			stats.Scanned, stats.Ingested, stats.Deduplicated, stats.Malformed, stats.Failed)
	}
	return stats, nil
}

// ingest processes one inbox file. Record happens before the rename so a
// crash between the two leaves the file in the inbox; the unique source
// filename makes the re-record on the next poll a no-op.
func (b *Bridge) ingest(name string, stats *PollStats) {
	path := filepath.Join(b.inbox, name)

	data, err := os.ReadFile(path)
	if err != nil {
		logging.BridgeWarn("Failed to read inbox file %s: %v", name, err)
		stats.Failed++
		return
	}

	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.BridgeWarn("Malformed inbox file %s: %v", name, err)
		badPath := filepath.Join(b.archive, name+BadSuffix)
		if renameErr := os.Rename(path, badPath); renameErr != nil {
			logging.BridgeError("Failed to quarantine %s: %v", name, renameErr)
			stats.Failed++
			return
		}
		stats.Malformed++
		return
	}

	content := payloadString(msg.Payload())
	recorded, err := b.recorder.RecordBridgeEvent(name, msg.Timestamp, content)
	if err != nil {
		// Leave the file in the inbox; the next poll retries.
		logging.BridgeError("Failed to record bridge event for %s: %v", name, err)
		stats.Failed++
		return
	}
	if recorded {
		stats.Ingested++
	} else {
		stats.Deduplicated++
	}

	if err := os.Rename(path, filepath.Join(b.archive, name)); err != nil {
		logging.BridgeError("Failed to archive %s: %v", name, err)
		stats.Failed++
		return
	}
	logging.BridgeDebug("Archived %s", name)
}

// ListReplies returns the most recent correspondent messages, newest first
// by mtime: archived files first, then anything still waiting in the inbox.
// Quarantined .bad files are skipped.
func (b *Bridge) ListReplies(limit int) ([]Reply, error) {
	if limit <= 0 {
		limit = 10
	}

	var replies []Reply
	for _, dir := range []string{b.archive, b.inbox} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", dir, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasSuffix(name, BadSuffix) || strings.HasSuffix(name, ".tmp") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				logging.BridgeDebug("Skipping unreadable reply %s: %v", name, err)
				continue
			}
			var msg InboundMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			replies = append(replies, Reply{
				File:      name,
				Timestamp: msg.Timestamp,
				Content:   msg.Payload(),
				ModTime:   info.ModTime(),
			})
		}
	}

	sort.Slice(replies, func(i, j int) bool {
		return replies[i].ModTime.After(replies[j].ModTime)
	})
	if len(replies) > limit {
		replies = replies[:limit]
	}
	return replies, nil
}

// PendingOutbox counts outbox files not yet consumed by the correspondent.
func (b *Bridge) PendingOutbox() (int, error) {
	return countFiles(b.outbox)
}

// ArchivedCount counts ingested inbox files, quarantined ones included.
func (b *Bridge) ArchivedCount() (int, error) {
	return countFiles(b.archive)
}

func countFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && !strings.HasSuffix(entry.Name(), ".tmp") {
			n++
		}
	}
	return n, nil
}

// writeAtomic writes data to dir/name via a temp file in the same
// directory followed by a rename. The temp name ends in .tmp so every
// scanner of the tree skips it mid-write.
func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}

// payloadString renders an inbound payload for storage: strings pass
// through, structured payloads keep their JSON form.
func payloadString(v interface{}) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Sprintf("%v", p)
		}
		return string(data)
	}
}

// sanitizeType keeps outbox filenames shell-friendly.
func sanitizeType(t string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, t)
}
