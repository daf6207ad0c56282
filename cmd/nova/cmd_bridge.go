package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"nova/internal/bridge"
	"nova/internal/server"
)

var (
	bridgeType     string
	bridgeContent  string
	bridgeRequest  string
	bridgePriority string
	bridgeRender   bool
)

// bridgeCmd groups the file-bridge commands
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "File bridge to the external correspondent",
}

var bridgeSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Place a message on the bridge outbox",
	Long: `Writes one outbound message into the bridge outbox, stamped with the
daemon's current consciousness level and memory count. The external
correspondent consumes it on its next pass.

Example:
  nova bridge send --type query --content "how does it feel out there?" --request "describe your day"`,
	RunE: runBridgeSend,
}

var bridgeCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Read archived correspondent replies",
	RunE:  runBridgeCheck,
}

func init() {
	bridgeSendCmd.Flags().StringVar(&bridgeType, "type", "", "Message type (required)")
	bridgeSendCmd.Flags().StringVar(&bridgeContent, "content", "", "Message content, plain text or JSON (required)")
	bridgeSendCmd.Flags().StringVar(&bridgeRequest, "request", "", "What the correspondent is asked to do")
	bridgeSendCmd.Flags().StringVar(&bridgePriority, "priority", "", "Priority: low, medium, or high")
	bridgeSendCmd.MarkFlagRequired("type")
	bridgeSendCmd.MarkFlagRequired("content")

	bridgeCheckCmd.Flags().BoolVar(&bridgeRender, "render", false, "Render reply content as markdown")

	bridgeCmd.AddCommand(bridgeSendCmd)
	bridgeCmd.AddCommand(bridgeCheckCmd)
}

func runBridgeSend(cmd *cobra.Command, args []string) error {
	content := json.RawMessage(bridgeContent)
	if !json.Valid(content) {
		quoted, err := json.Marshal(bridgeContent)
		if err != nil {
			return fmt.Errorf("failed to encode content: %w", err)
		}
		content = quoted
	}

	reply, err := callDaemon(server.Request{
		Command:     "bridge_send",
		MessageType: bridgeType,
		Content:     content,
		Request:     bridgeRequest,
		Priority:    bridgePriority,
	})
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func runBridgeCheck(cmd *cobra.Command, args []string) error {
	raw, err := callDaemon(server.Request{Command: "bridge_check"})
	if err != nil {
		return err
	}

	var replies []bridge.Reply
	if err := json.Unmarshal([]byte(raw), &replies); err != nil {
		// Error line from the daemon; show it as-is.
		fmt.Println(raw)
		return nil
	}
	if len(replies) == 0 {
		fmt.Println("No correspondent replies yet.")
		return nil
	}

	var renderer *glamour.TermRenderer
	if bridgeRender {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
	}

	for _, r := range replies {
		fmt.Printf("── %s  %s\n", r.File, r.Timestamp)
		body := replyText(r.Content)
		if renderer != nil {
			if rendered, err := renderer.Render(body); err == nil {
				body = rendered
			}
		}
		fmt.Println(body)
	}
	return nil
}

func replyText(v interface{}) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return p
	default:
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", p)
		}
		return string(data)
	}
}
