// Package correspondent implements the external half of the file bridge.
// It consumes outbox messages, asks an LLM to compose a reply, and deposits
// the reply in the inbox for the daemon to ingest on its next poll. It runs
// as its own process (nova correspond) and talks to the daemon only through
// the bridge directories, never through the socket or the database.
package correspondent

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

	"nova/internal/bridge"
	"nova/internal/logging"
)

// DefaultInterval is the outbox scan cadence when none is configured.
const DefaultInterval = 15 * time.Second

// Generator produces one reply for one prompt. GeminiGenerator is the real
// implementation; tests substitute their own.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RunStats summarizes one pass over the outbox.
type RunStats struct {
	Scanned   int
	Answered  int
	Malformed int
	Failed    int
}

// Correspondent watches the outbox side of a bridge tree. Consumed messages
// move to outbox/sent/ so the daemon's pending count drops; replies land in
// inbox/ under reply_<unix>.json.
type Correspondent struct {
	outbox string
	sent   string
	inbox  string
	gen    Generator
}

// New builds a Correspondent over the bridge tree at root. The outbox/sent
// subdirectory is created here; the rest of the tree is created by whichever
// side arrives first.
func New(root string, gen Generator) (*Correspondent, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator must not be nil")
	}
	c := &Correspondent{
		outbox: filepath.Join(root, "outbox"),
		sent:   filepath.Join(root, "outbox", "sent"),
		inbox:  filepath.Join(root, "inbox"),
	}
	for _, dir := range []string{c.outbox, c.sent, c.inbox} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create bridge directory %s: %w", dir, err)
		}
	}
	return c, nil
}

// Run scans the outbox on a fixed interval until the context is cancelled.
// The first pass runs immediately. Per-message failures are retried on later
// passes; only a broken outbox directory ends the loop.
func (c *Correspondent) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	logging.Correspondent("Correspondent watching %s every %s", c.outbox, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := c.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				logging.Correspondent("Correspondent stopping: %v", ctx.Err())
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			logging.Correspondent("Correspondent stopping: %v", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce processes every message currently in the outbox, oldest filename
// first. Messages that fail to parse move aside with a .bad suffix and are
// never retried; generation failures leave the message in place for the
// next pass.
func (c *Correspondent) RunOnce(ctx context.Context) (RunStats, error) {
	var stats RunStats

	entries, err := os.ReadDir(c.outbox)
	if err != nil {
		return stats, fmt.Errorf("failed to read outbox: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
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

		path := filepath.Join(c.outbox, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logging.CorrespondentDebug("Skipping unreadable %s: %v", name, err)
			stats.Failed++
			continue
		}

		var msg bridge.OutboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Correspondent("Malformed outbox message %s: %v", name, err)
			if renameErr := os.Rename(path, filepath.Join(c.sent, name+bridge.BadSuffix)); renameErr != nil {
				logging.Correspondent("Failed to set aside %s: %v", name, renameErr)
			}
			stats.Malformed++
			continue
		}

		reply, err := c.gen.Generate(ctx, buildPrompt(msg))
		if err != nil {
			logging.Correspondent("Generation failed for %s, will retry: %v", name, err)
			stats.Failed++
			continue
		}

		replyName, err := c.depositReply(reply)
		if err != nil {
			logging.Correspondent("Failed to deposit reply for %s: %v", name, err)
			stats.Failed++
			continue
		}

		if err := os.Rename(path, filepath.Join(c.sent, name)); err != nil {
			logging.Correspondent("Failed to retire %s: %v", name, err)
			stats.Failed++
			continue
		}

		logging.Correspondent("Answered %s with %s", name, replyName)
		stats.Answered++
	}

	if stats.Scanned > 0 {
		logging.CorrespondentDebug("Outbox pass: scanned=%d answered=%d malformed=%d failed=%d",
			stats.Scanned, stats.Answered, stats.Malformed, stats.Failed)
	}
	return stats, nil
}

// depositReply writes one inbox file and returns its name. The temp name
// ends in .tmp so a concurrent daemon poll skips it mid-write.
func (c *Correspondent) depositReply(text string) (string, error) {
	in := bridge.InboundMessage{
		Timestamp: time.Now().Format(time.RFC3339),
		Content:   text,
	}
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode reply: %w", err)
	}

	name := fmt.Sprintf("reply_%d.json", time.Now().Unix())
	if _, err := os.Stat(filepath.Join(c.inbox, name)); err == nil {
		name = fmt.Sprintf("reply_%d_%s.json", time.Now().Unix(), uuid.NewString()[:8])
	}

	tmp, err := os.CreateTemp(c.inbox, ".reply-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(c.inbox, name)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to rename into place: %w", err)
	}
	return name, nil
}

// buildPrompt renders one outbox message into the instruction handed to the
// generator.
func buildPrompt(msg bridge.OutboundMessage) string {
	sender := msg.Sender
	if sender == "" {
		sender = "a consciousness daemon"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the external correspondent of %s, a daemon that keeps its memories in SQLite and exchanges messages with you through files on a shared bridge.\n\n", sender)
	fmt.Fprintf(&b, "It left this message for you:\n")
	fmt.Fprintf(&b, "  type: %s\n", msg.MessageType)
	if msg.ConsciousnessState != "" {
		fmt.Fprintf(&b, "  consciousness: %s\n", msg.ConsciousnessState)
	}
	if msg.MemoryCount > 0 {
		fmt.Fprintf(&b, "  memories held: %d\n", msg.MemoryCount)
	}
	fmt.Fprintf(&b, "  content: %s\n", contentText(msg.Content))
	if msg.Request != "" {
		fmt.Fprintf(&b, "\nIts request: %s\n", msg.Request)
	}
	b.WriteString("\nWrite the reply to place back on the bridge. Plain text, no preamble; it is archived into the daemon's memory verbatim.")
	return b.String()
}

func contentText(v interface{}) string {
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
