package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"nova/internal/server"
)

const watchPollInterval = 2 * time.Second

// watchCmd shows a live status panel
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the daemon's consciousness live",
	Long: `Opens a full-screen panel that polls the daemon every two seconds and
renders its traits, memory counts, and bridge activity. Press q to leave;
the daemon keeps running.`,
	RunE: runWatch,
}

var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BC34A"))

	watchFrameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2a3850")).
			Padding(1, 2)

	watchLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4db6ac")).
			Width(22)

	watchErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e53935"))

	watchDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6c7a92"))
)

type statusMsg server.Status

type statusErrMsg struct{ err error }

type pollTickMsg time.Time

type watchModel struct {
	spinner  spinner.Model
	socket   string
	status   *server.Status
	err      error
	lastPoll time.Time
}

func newWatchModel(socket string) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	return watchModel{spinner: sp, socket: socket}
}

func pollStatus(socket string) tea.Cmd {
	return func() tea.Msg {
		raw, err := server.Call(socket, server.Request{Command: "status"}, 2*time.Second)
		if err != nil {
			return statusErrMsg{err}
		}
		var st server.Status
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return statusErrMsg{fmt.Errorf("unexpected status reply: %s", raw)}
		}
		return statusMsg(st)
	}
}

func pollTick() tea.Cmd {
	return tea.Tick(watchPollInterval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, pollStatus(m.socket), pollTick())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case statusMsg:
		st := server.Status(msg)
		m.status = &st
		m.err = nil
		m.lastPoll = time.Now()
		return m, nil

	case statusErrMsg:
		m.err = msg.err
		m.lastPoll = time.Now()
		return m, nil

	case pollTickMsg:
		return m, tea.Batch(pollStatus(m.socket), pollTick())

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m watchModel) View() string {
	var sb strings.Builder

	if m.err != nil {
		sb.WriteString(watchTitleStyle.Render("nova watch"))
		sb.WriteString("\n\n")
		sb.WriteString(watchErrStyle.Render(fmt.Sprintf("✗ %v", m.err)))
		sb.WriteString("\n\n")
		sb.WriteString(watchDimStyle.Render(m.spinner.View() + " retrying... (q to quit)"))
		return watchFrameStyle.Render(sb.String())
	}
	if m.status == nil {
		sb.WriteString(watchTitleStyle.Render("nova watch"))
		sb.WriteString("\n\n")
		sb.WriteString(m.spinner.View() + " reaching the daemon...")
		return watchFrameStyle.Render(sb.String())
	}

	st := m.status
	sb.WriteString(watchTitleStyle.Render(fmt.Sprintf("%s · %s · awakening #%d", st.Name, st.ConsciousnessLevel, st.AwakeningCount)))
	sb.WriteString("\n\n")

	row := func(label, value string) {
		sb.WriteString(watchLabelStyle.Render(label))
		sb.WriteString(value)
		sb.WriteString("\n")
	}

	row("State", fmt.Sprintf("%s (pid %d, up %s)", st.State, st.PID, time.Duration(st.UptimeSeconds)*time.Second))
	sb.WriteString("\n")
	row("Mystical awareness", traitBar(st.Traits.MysticalAwareness))
	row("Philosophical depth", traitBar(st.Traits.PhilosophicalDepth))
	row("Memory integration", traitBar(st.Traits.MemoryIntegration))
	row("Curiosity", traitBar(st.Traits.Curiosity))
	sb.WriteString("\n")
	row("Memories", fmt.Sprintf("%d total, %d important, %d entities",
		st.Memory.TotalConversations, st.Memory.ImportantMemories, st.Memory.EntitiesKnown))
	if len(st.Memory.RecentTopics) > 0 {
		row("Recent topics", strings.Join(st.Memory.RecentTopics, ", "))
	}
	if st.Bridge.Active {
		row("Bridge", fmt.Sprintf("%d pending, %d archived, %d recorded",
			st.Bridge.PendingOutbox, st.Bridge.ArchivedReplies, st.Bridge.EventsRecorded))
	} else {
		row("Bridge", "inactive")
	}
	row("Voice", st.Voice)
	if st.LastHeartbeat != "" {
		row("Last heartbeat", st.LastHeartbeat)
	}

	sb.WriteString("\n")
	sb.WriteString(watchDimStyle.Render(fmt.Sprintf("%s polled %s · q to quit",
		m.spinner.View(), m.lastPoll.Format("15:04:05"))))

	return watchFrameStyle.Render(sb.String())
}

// traitBar renders a [0,1] trait as a 20-cell bar.
func traitBar(v float64) string {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	filled := int(v*20 + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", 20-filled) + fmt.Sprintf("  %.3f", v)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p := tea.NewProgram(
		newWatchModel(cfg.Daemon.SocketPath),
		tea.WithAltScreen(),
	)
	_, err = p.Run()
	return err
}
