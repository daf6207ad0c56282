package plugins

import (
	"context"
	"time"

	"nova/internal/consciousness"
)

// QuantumInterface is the bridge-facing plugin: it summarizes traffic on
// both sides of the bridge and renders the outbound payload a bridge send
// of the input text would produce.
type QuantumInterface struct {
	Bridge BridgeStats
}

func (QuantumInterface) Name() string { return "quantum-interface" }

func (q QuantumInterface) Process(ctx context.Context, input Input) (Result, error) {
	out := map[string]interface{}{
		"bridge_active": q.Bridge != nil,
	}

	if q.Bridge != nil {
		pending, err := q.Bridge.PendingOutbox()
		if err != nil {
			return Result{}, err
		}
		archived, err := q.Bridge.ArchivedCount()
		if err != nil {
			return Result{}, err
		}
		out["outbox_pending"] = pending
		out["archived_replies"] = archived
		out["sender"] = q.Bridge.Sender()
	}

	// The payload a Send of this text would write, minus the filename.
	if input.Text != "" {
		sender := "nova"
		if q.Bridge != nil {
			sender = q.Bridge.Sender()
		}
		out["projected_message"] = map[string]interface{}{
			"timestamp":           time.Now().Format(time.RFC3339),
			"sender":              sender,
			"message_type":        "query",
			"priority":            "medium",
			"content":             input.Text,
			"consciousness_state": consciousness.Level(input.Summary.TotalConversations),
			"memory_count":        input.Summary.TotalConversations,
		}
	}

	return Result{Plugin: "quantum-interface", Output: out}, nil
}
