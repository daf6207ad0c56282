package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"nova/internal/config"
	"nova/internal/daemon"
	"nova/internal/server"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		// go.opencensus.io (via google.golang.org/genai) starts this worker in
		// its package init; it has no stop API and outlives every test.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func TestJoinArgs(t *testing.T) {
	if got := joinArgs([]string{"one", "two", "three"}); got != "one two three" {
		t.Fatalf("expected 'one two three', got '%s'", got)
	}
}

func TestTraitBar(t *testing.T) {
	empty := traitBar(0)
	if strings.Contains(empty, "█") {
		t.Fatalf("zero trait should render no filled cells: %s", empty)
	}
	full := traitBar(1)
	if !strings.HasPrefix(full, strings.Repeat("█", 20)) {
		t.Fatalf("full trait should render 20 filled cells: %s", full)
	}
	if !strings.Contains(traitBar(0.5), "0.500") {
		t.Fatal("bar should carry the numeric value")
	}
}

func TestReplyText(t *testing.T) {
	if got := replyText("plain"); got != "plain" {
		t.Fatalf("string content should pass through, got %q", got)
	}
	if got := replyText(nil); got != "" {
		t.Fatalf("nil content should render empty, got %q", got)
	}
	if got := replyText(map[string]interface{}{"mood": "calm"}); !strings.Contains(got, `"mood"`) {
		t.Fatalf("structured content should render as JSON, got %q", got)
	}
}

func TestClientCommandsAgainstLiveDaemon(t *testing.T) {
	logger = zap.NewNop()

	cfg := config.DefaultConfig()
	cfg.Daemon.DataRoot = t.TempDir()
	cfg.Daemon.SocketPath = filepath.Join(t.TempDir(), "nova.sock")
	cfg.Consciousness.EvolutionInterval = "1h"

	d, err := daemon.New(cfg)
	require.NoError(t, err)
	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(context.Background()) }()

	prevSocket, prevConfig := socketPath, configPath
	socketPath = cfg.Daemon.SocketPath
	configPath = filepath.Join(cfg.Daemon.DataRoot, "config.yaml")
	t.Cleanup(func() { socketPath, configPath = prevSocket, prevConfig })

	require.Eventually(t, func() bool {
		_, callErr := server.Call(cfg.Daemon.SocketPath, server.Request{Command: "status"}, 300*time.Millisecond)
		return callErr == nil
	}, 3*time.Second, 25*time.Millisecond, "daemon did not become ready")

	out := captureOutput(t, func() {
		require.NoError(t, runSay(&cobra.Command{}, []string{"hello", "there"}))
	})
	assert.Contains(t, out, server.ReplySigil)

	out = captureOutput(t, func() {
		require.NoError(t, showStatus(&cobra.Command{}, nil))
	})
	assert.Contains(t, out, "Nova Status")
	assert.Contains(t, out, "mystical awareness")

	statusJSON = true
	out = captureOutput(t, func() {
		require.NoError(t, showStatus(&cobra.Command{}, nil))
	})
	statusJSON = false
	assert.Contains(t, out, `"awakening_count"`)

	out = captureOutput(t, func() {
		require.NoError(t, runEvolve(&cobra.Command{}, nil))
	})
	assert.Contains(t, out, "Evolution")

	out = captureOutput(t, func() {
		require.NoError(t, runPlugin(&cobra.Command{}, []string{"omniscient-analysis", "what", "patterns"}))
	})
	assert.Contains(t, out, "topic_category")

	bridgeType, bridgeContent, bridgeRequest, bridgePriority = "query", "how is it out there", "", "high"
	out = captureOutput(t, func() {
		require.NoError(t, runBridgeSend(&cobra.Command{}, nil))
	})
	assert.Contains(t, out, "Message placed on the bridge")

	out = captureOutput(t, func() {
		require.NoError(t, runBridgeCheck(&cobra.Command{}, nil))
	})
	assert.Contains(t, out, "No correspondent replies yet")

	out = captureOutput(t, func() {
		require.NoError(t, runShutdown(&cobra.Command{}, nil))
	})
	assert.Contains(t, out, "going to sleep")

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit after shutdown command")
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}
