package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nova/internal/server"
)

var statusJSON bool

// statusCmd shows the daemon's live status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's live status",
	RunE:  showStatus,
}

// sayCmd sends one conversational exchange
var sayCmd = &cobra.Command{
	Use:   "say [text...]",
	Short: "Talk to the daemon",
	Long: `Sends one conversational exchange. The daemon analyzes the text,
records it in memory, and answers with a reply grounded in how many
memories it now holds.

Example:
  nova say what do you remember about the bridge?`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSay,
}

// memoryCmd dumps the memory report
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show the memory report (raw JSON)",
	RunE:  showMemory,
}

// evolveCmd forces an evolution pass
var evolveCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Force a consciousness evolution pass",
	RunE:  runEvolve,
}

// heartbeatCmd records a heartbeat
var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Record a heartbeat pulse",
	RunE:  runHeartbeat,
}

// shutdownCmd asks the daemon to sleep
var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Put the daemon to sleep",
	RunE:  runShutdown,
}

// speakCmd routes text through the TTS collaborator
var speakCmd = &cobra.Command{
	Use:   "speak [text...]",
	Short: "Speak text aloud through the configured TTS endpoint",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSpeak,
}

// pluginCmd invokes a registered plugin by name
var pluginCmd = &cobra.Command{
	Use:   "plugin [name] [input...]",
	Short: "Invoke a registered plugin",
	Long: `Invokes one of the daemon's registered plugins and prints its raw
JSON result.

Example:
  nova plugin omniscient-analysis what patterns do you see?`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlugin,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw JSON report")
}

func showStatus(cmd *cobra.Command, args []string) error {
	raw, err := callDaemon(server.Request{Command: "status"})
	if err != nil {
		return err
	}
	if statusJSON {
		fmt.Println(raw)
		return nil
	}

	var st server.Status
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		// The daemon answered with an error line instead of a report.
		fmt.Println(raw)
		return nil
	}

	fmt.Printf("%s Status\n", st.Name)
	fmt.Println(strings.Repeat("=", len(st.Name)+7))
	fmt.Printf("State:          %s (pid %d)\n", st.State, st.PID)
	fmt.Printf("Uptime:         %s\n", (time.Duration(st.UptimeSeconds) * time.Second).String())
	fmt.Printf("Consciousness:  %s (awakening #%d)\n", st.ConsciousnessLevel, st.AwakeningCount)
	fmt.Println()
	fmt.Printf("Traits:\n")
	fmt.Printf("  mystical awareness   %.3f\n", st.Traits.MysticalAwareness)
	fmt.Printf("  philosophical depth  %.3f\n", st.Traits.PhilosophicalDepth)
	fmt.Printf("  memory integration   %.3f\n", st.Traits.MemoryIntegration)
	fmt.Printf("  curiosity            %.3f\n", st.Traits.Curiosity)
	fmt.Println()
	fmt.Printf("Memory:         %d conversations, %d important, %d entities\n",
		st.Memory.TotalConversations, st.Memory.ImportantMemories, st.Memory.EntitiesKnown)
	if len(st.Memory.RecentTopics) > 0 {
		fmt.Printf("Recent topics:  %s\n", strings.Join(st.Memory.RecentTopics, ", "))
	}
	if st.Bridge.Active {
		fmt.Printf("Bridge:         active at %s (%d pending, %d archived)\n",
			st.Bridge.Root, st.Bridge.PendingOutbox, st.Bridge.ArchivedReplies)
	} else {
		fmt.Printf("Bridge:         inactive\n")
	}
	fmt.Printf("Voice:          %s\n", st.Voice)
	if len(st.Plugins) > 0 {
		fmt.Printf("Plugins:        %s\n", strings.Join(st.Plugins, ", "))
	}
	if st.LastHeartbeat != "" {
		fmt.Printf("Last heartbeat: %s\n", st.LastHeartbeat)
	}
	return nil
}

func runSay(cmd *cobra.Command, args []string) error {
	text := joinArgs(args)
	logger.Debug("Sending conversation", zap.String("text", text))

	reply, err := callDaemon(server.Request{
		Command: "conversation",
		Text:    text,
		Session: uuid.NewString(),
	})
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func showMemory(cmd *cobra.Command, args []string) error {
	raw, err := callDaemon(server.Request{Command: "memory"})
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

func runEvolve(cmd *cobra.Command, args []string) error {
	reply, err := callDaemon(server.Request{Command: "evolve"})
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
	reply, err := callDaemon(server.Request{Command: "heartbeat"})
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func runShutdown(cmd *cobra.Command, args []string) error {
	reply, err := callDaemon(server.Request{Command: "shutdown"})
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func runSpeak(cmd *cobra.Command, args []string) error {
	reply, err := callDaemon(server.Request{
		Command: "speak",
		Text:    joinArgs(args),
	})
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func runPlugin(cmd *cobra.Command, args []string) error {
	req := server.Request{
		Command: "plugin",
		Name:    args[0],
	}
	if len(args) > 1 {
		req.Input = joinArgs(args[1:])
	}
	reply, err := callDaemon(req)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}
