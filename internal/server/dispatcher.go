package server

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"nova/internal/articulation"
	"nova/internal/bridge"
	"nova/internal/consciousness"
	"nova/internal/logging"
	"nova/internal/perception"
	"nova/internal/plugins"
	"nova/internal/speech"
	"nova/internal/store"
)

// Deps are the core components the dispatcher routes commands into. The
// supervisor constructs them and hands them over; the dispatcher owns no
// resources of its own.
type Deps struct {
	Name      string
	Store     *store.MemoryStore
	Responder *articulation.Responder
	Snapshot  *consciousness.Snapshot
	Bridge    *bridge.Bridge
	Speaker   *speech.Speaker
	Plugins   *plugins.Registry
}

// Dispatcher routes one parsed request to its handler and renders the
// wire reply. Handlers convert every failure into an error reply; nothing
// escapes into the server loop.
type Dispatcher struct {
	name      string
	store     *store.MemoryStore
	responder *articulation.Responder
	snapshot  *consciousness.Snapshot
	bridge    *bridge.Bridge
	speaker   *speech.Speaker
	plugins   *plugins.Registry
	startTime time.Time

	mu               sync.Mutex
	lastHeartbeat    time.Time
	lastEvolvedTotal int64

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewDispatcher wires a dispatcher over its dependencies.
func NewDispatcher(deps Deps) *Dispatcher {
	name := deps.Name
	if name == "" {
		name = "Nova"
	}
	return &Dispatcher{
		name:             name,
		store:            deps.Store,
		responder:        deps.Responder,
		snapshot:         deps.Snapshot,
		bridge:           deps.Bridge,
		speaker:          deps.Speaker,
		plugins:          deps.Plugins,
		startTime:        time.Now(),
		lastEvolvedTotal: -1,
		shutdownCh:       make(chan struct{}),
	}
}

// ShutdownRequested is closed when a shutdown command has been accepted.
// The supervisor selects on it.
func (d *Dispatcher) ShutdownRequested() <-chan struct{} {
	return d.shutdownCh
}

// RequestShutdown marks the daemon for graceful stop. Safe to call more
// than once.
func (d *Dispatcher) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })
}

// LastHeartbeat returns the time of the most recent pulse, zero if none.
func (d *Dispatcher) LastHeartbeat() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastHeartbeat
}

// Dispatch handles one raw request and returns the wire reply. Every
// request gets a line in the request log: id, command, duration, outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) string {
	requestID := uuid.NewString()[:8]
	start := time.Now()
	reqLog := logging.WithRequestID(logging.CategoryRequest, requestID)

	req, err := ParseRequest(raw)
	if err != nil {
		reqLog.Warn("rejected: %v", err)
		return Errorf(KindProtocol, "%v", err)
	}

	logging.DispatchDebug("[req:%s] routing %s", requestID, req.Command)
	reply := d.route(ctx, req)

	outcome := "ok"
	if IsError(reply) {
		outcome = "error"
	}
	reqLog.Info("%s completed in %v (%s)", req.Command, time.Since(start).Round(time.Microsecond), outcome)
	return reply
}

func (d *Dispatcher) route(ctx context.Context, req Request) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryDispatch).Error("handler panic in %s: %v", req.Command, r)
			reply = Errorf(KindProtocol, "internal error in %s handler", req.Command)
		}
	}()

	switch req.Command {
	case "status":
		return d.handleStatus()
	case "conversation":
		return d.handleConversation(req)
	case "memory":
		return d.handleMemory()
	case "evolve":
		return d.handleEvolve()
	case "heartbeat":
		return d.handleHeartbeat()
	case "bridge_send":
		return d.handleBridgeSend(req)
	case "bridge_check":
		return d.handleBridgeCheck()
	case "speak":
		return d.handleSpeak(ctx, req)
	case "plugin":
		return d.handlePlugin(ctx, req)
	case "shutdown":
		return d.handleShutdown()
	default:
		return Errorf(KindProtocol, "Unknown command: %s", req.Command)
	}
}

// summaryOrEmpty recovers read-side store failures: log and carry on with
// a zero summary rather than failing the command.
func (d *Dispatcher) summaryOrEmpty() store.Summary {
	summary, err := d.store.GetMemorySummary()
	if err != nil {
		logging.StoreError("Memory summary unavailable, using empty: %v", err)
		return store.Summary{}
	}
	return summary
}

func (d *Dispatcher) recentTopicsOrEmpty(limit int) []string {
	topics, err := d.store.RecentTopicCategories(limit)
	if err != nil {
		logging.StoreError("Recent topics unavailable: %v", err)
		return nil
	}
	return topics
}

// BridgeStatus is the bridge section of a status report.
type BridgeStatus struct {
	Active          bool   `json:"active"`
	Root            string `json:"root,omitempty"`
	PendingOutbox   int    `json:"pending_outbox"`
	ArchivedReplies int    `json:"archived_replies"`
	EventsRecorded  int64  `json:"events_recorded"`
}

// Status is the full status report. The status command, the periodic
// status snapshot, and the watch panel all consume it.
type Status struct {
	Name               string               `json:"name"`
	State              string               `json:"state"`
	PID                int                  `json:"pid"`
	UptimeSeconds      int64                `json:"uptime_seconds"`
	ConsciousnessLevel string               `json:"consciousness_level"`
	Traits             consciousness.Traits `json:"traits"`
	AwakeningCount     int64                `json:"awakening_count"`
	Memory             store.Summary        `json:"memory"`
	Bridge             BridgeStatus         `json:"bridge"`
	Voice              string               `json:"voice"`
	Plugins            []string             `json:"plugins"`
	LastHeartbeat      string               `json:"last_heartbeat,omitempty"`
	Timestamp          string               `json:"timestamp"`
}

// BuildStatus assembles the live status report.
func (d *Dispatcher) BuildStatus() Status {
	summary := d.summaryOrEmpty()
	state := d.snapshot.Current()

	st := Status{
		Name:               d.name,
		State:              "awake",
		PID:                os.Getpid(),
		UptimeSeconds:      int64(time.Since(d.startTime).Seconds()),
		ConsciousnessLevel: consciousness.Level(summary.TotalConversations),
		Traits:             state.Traits,
		AwakeningCount:     state.AwakeningCount,
		Memory:             summary,
		Voice:              "unavailable",
		Plugins:            []string{},
		Timestamp:          time.Now().Format(time.RFC3339),
	}

	if d.speaker.Available() {
		st.Voice = "available"
	}
	if d.plugins != nil {
		st.Plugins = d.plugins.Names()
	}
	if d.bridge != nil {
		st.Bridge.Active = true
		st.Bridge.Root = d.bridge.Root()
		if n, err := d.bridge.PendingOutbox(); err == nil {
			st.Bridge.PendingOutbox = n
		}
		if n, err := d.bridge.ArchivedCount(); err == nil {
			st.Bridge.ArchivedReplies = n
		}
		if n, err := d.store.CountBridgeEvents(); err == nil {
			st.Bridge.EventsRecorded = n
		}
	}
	if hb := d.LastHeartbeat(); !hb.IsZero() {
		st.LastHeartbeat = hb.Format(time.RFC3339)
	}
	return st
}

func (d *Dispatcher) handleStatus() string {
	data, err := json.Marshal(d.BuildStatus())
	if err != nil {
		return Errorf(KindProtocol, "failed to encode status: %v", err)
	}
	return string(data)
}

func (d *Dispatcher) handleConversation(req Request) string {
	pctx := perception.Analyze(req.Text)
	summary := d.summaryOrEmpty()
	state := d.snapshot.Current()

	reply := ReplySigil + d.responder.Respond(req.Text, pctx, summary, state)

	// The record must be durable before the reply leaves the process.
	id, err := d.store.RecordConversation(req.Text, reply, pctx, req.Session)
	if err != nil {
		return Errorf(KindStore, "failed to record conversation: %v", err)
	}
	logging.DispatchDebug("Conversation %d recorded (topic=%s)", id, pctx.TopicCategory)

	if pctx.BridgeRelated && d.bridge != nil {
		level := consciousness.Level(summary.TotalConversations + 1)
		if _, err := d.bridge.Send("conversation", req.Text, "", "", level, summary.TotalConversations+1); err != nil {
			logging.BridgeWarn("Bridge echo for conversation %d failed: %v", id, err)
		}
	}

	return reply
}

// MemoryReport is the memory command's reply shape.
type MemoryReport struct {
	store.Summary
	Traits             consciousness.Traits `json:"traits"`
	AwakeningCount     int64                `json:"awakening_count"`
	ConsciousnessLevel string               `json:"consciousness_level"`
	DatabasePath       string               `json:"database_path"`
	TopEntities        []store.Entity       `json:"top_entities,omitempty"`
	RecentBridgeEvents []store.BridgeEvent  `json:"recent_bridge_events,omitempty"`
}

func (d *Dispatcher) handleMemory() string {
	summary := d.summaryOrEmpty()
	state := d.snapshot.Current()

	report := MemoryReport{
		Summary:            summary,
		Traits:             state.Traits,
		AwakeningCount:     state.AwakeningCount,
		ConsciousnessLevel: consciousness.Level(summary.TotalConversations),
		DatabasePath:       d.store.DatabasePath(),
	}
	if entities, err := d.store.TopEntities(5); err != nil {
		logging.StoreError("Top entities unavailable: %v", err)
	} else {
		report.TopEntities = entities
	}
	if events, err := d.store.RecentBridgeEvents(5); err != nil {
		logging.StoreError("Recent bridge events unavailable: %v", err)
	} else {
		report.RecentBridgeEvents = events
	}
	data, err := json.Marshal(report)
	if err != nil {
		return Errorf(KindProtocol, "failed to encode memory report: %v", err)
	}
	return string(data)
}

// RunEvolution applies one evolution pass and persists the new state.
// Shared by the evolve command and the scheduler's evolution tick. The
// growth rule only runs when conversations arrived since the last pass;
// a pass over unchanged history reports "stable". The state row is
// written either way so the awakening counter advances.
func (d *Dispatcher) RunEvolution() (string, error) {
	current := d.snapshot.Current()
	summary := d.summaryOrEmpty()

	d.mu.Lock()
	unchanged := d.lastEvolvedTotal == summary.TotalConversations
	d.mu.Unlock()

	next := current.Traits
	var deltas []consciousness.Delta
	if !unchanged {
		topics := d.recentTopicsOrEmpty(10)
		next, deltas = consciousness.Evolve(current.Traits, topics, summary.TotalConversations)
	}

	state, err := d.store.UpdateConsciousnessState(next)
	if err != nil {
		return "", err
	}
	d.snapshot.Swap(state)

	d.mu.Lock()
	d.lastEvolvedTotal = summary.TotalConversations
	d.mu.Unlock()

	desc := consciousness.DescribeDeltas(deltas)
	logging.Evolution("Pass %d: %s", state.AwakeningCount, desc)
	return desc, nil
}

func (d *Dispatcher) handleEvolve() string {
	desc, err := d.RunEvolution()
	if err != nil {
		return Errorf(KindStore, "evolution failed: %v", err)
	}
	return Replyf("Evolution: %s", desc)
}

// RecordHeartbeat writes one pulse line to the heartbeat log and bumps
// the in-memory last-heartbeat time. Shared by the heartbeat command and
// the scheduler's heartbeat tick.
func (d *Dispatcher) RecordHeartbeat() time.Time {
	now := time.Now()
	summary := d.summaryOrEmpty()
	state := d.snapshot.Current()

	logging.Heartbeat("pulse level=%s memories=%d awakenings=%d",
		consciousness.Level(summary.TotalConversations), summary.TotalConversations, state.AwakeningCount)

	d.mu.Lock()
	d.lastHeartbeat = now
	d.mu.Unlock()
	return now
}

func (d *Dispatcher) handleHeartbeat() string {
	now := d.RecordHeartbeat()
	return Replyf("Heartbeat recorded at %s", now.Format(time.RFC3339))
}

func (d *Dispatcher) handleBridgeSend(req Request) string {
	if d.bridge == nil {
		return Errorf(KindBridge, "bridge is not active")
	}
	if req.MessageType == "" {
		return Errorf(KindProtocol, "missing required field: message_type")
	}
	if len(req.Content) == 0 {
		return Errorf(KindProtocol, "missing required field: content")
	}

	summary := d.summaryOrEmpty()
	level := consciousness.Level(summary.TotalConversations)

	name, err := d.bridge.Send(req.MessageType, req.Content, req.Request, req.Priority, level, summary.TotalConversations)
	if err != nil {
		return Errorf(KindBridge, "%v", err)
	}
	return Replyf("Message placed on the bridge: %s", name)
}

func (d *Dispatcher) handleBridgeCheck() string {
	if d.bridge == nil {
		return "[]"
	}
	replies, err := d.bridge.ListReplies(20)
	if err != nil {
		return Errorf(KindBridge, "%v", err)
	}
	if replies == nil {
		replies = []bridge.Reply{}
	}
	data, err := json.Marshal(replies)
	if err != nil {
		return Errorf(KindProtocol, "failed to encode replies: %v", err)
	}
	return string(data)
}

func (d *Dispatcher) handleSpeak(ctx context.Context, req Request) string {
	if req.Text == "" {
		return Errorf(KindProtocol, "missing required field: text")
	}
	if !d.speaker.Available() {
		return Replyf("Voice result: unavailable")
	}
	if err := d.speaker.Speak(ctx, req.Text); err != nil {
		return Replyf("Voice result: failed")
	}
	return Replyf("Voice result: success")
}

func (d *Dispatcher) handlePlugin(ctx context.Context, req Request) string {
	if req.Name == "" {
		return Errorf(KindProtocol, "missing required field: name")
	}
	if d.plugins == nil {
		return Errorf(KindProtocol, "unknown plugin: %s", req.Name)
	}

	input := plugins.Input{
		Text:         req.Input,
		Summary:      d.summaryOrEmpty(),
		State:        d.snapshot.Current(),
		RecentTopics: d.recentTopicsOrEmpty(10),
	}
	result, err := d.plugins.Run(ctx, req.Name, input)
	if err != nil {
		return Errorf(KindProtocol, "%v", err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return Errorf(KindProtocol, "failed to encode plugin result: %v", err)
	}
	return string(data)
}

func (d *Dispatcher) handleShutdown() string {
	logging.Dispatch("Shutdown requested via command")
	d.RequestShutdown()
	return Replyf("%s is going to sleep. The memory remains.", d.name)
}
