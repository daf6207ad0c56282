package server

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"nova/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

func startTestServer(t *testing.T, opts Options) (*Server, *Dispatcher, *store.MemoryStore, string) {
	t.Helper()
	d, st, _ := newTestDispatcher(t)

	if opts.SocketPath == "" {
		opts.SocketPath = filepath.Join(t.TempDir(), "nova.sock")
	}
	srv := NewServer(opts, d)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()
	require.NoError(t, srv.WaitReady(2*time.Second))

	t.Cleanup(func() {
		srv.Stop()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Error("server did not stop in time")
		}
	})
	return srv, d, st, opts.SocketPath
}

func TestServerServesStatus(t *testing.T) {
	_, _, _, socket := startTestServer(t, Options{})

	raw, err := Call(socket, Request{Command: "status"}, 2*time.Second)
	require.NoError(t, err)

	var st Status
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	assert.Equal(t, "Nova", st.Name)
	assert.Equal(t, "awake", st.State)
}

func TestServerUnknownCommandOverSocket(t *testing.T) {
	_, _, _, socket := startTestServer(t, Options{})

	reply, err := Call(socket, Request{Command: "not_a_real_command"}, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, ErrorSigil), "reply = %q", reply)
	assert.Contains(t, reply, "Unknown command:")
}

func TestServerSocketMode(t *testing.T) {
	_, _, _, socket := startTestServer(t, Options{})

	info, err := os.Stat(socket)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0666), info.Mode().Perm())
}

func TestServerRemovesStaleSocketFile(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "nova.sock")
	require.NoError(t, os.WriteFile(socket, []byte("stale"), 0644))

	_, _, _, _ = startTestServer(t, Options{SocketPath: socket})

	reply, err := Call(socket, Request{Command: "heartbeat"}, 2*time.Second)
	require.NoError(t, err)
	assert.Contains(t, reply, "Heartbeat recorded")
}

func TestServerConcurrentConversations(t *testing.T) {
	_, _, st, socket := startTestServer(t, Options{})

	texts := []string{"first parallel thought", "second parallel thought"}
	replies := make([]string, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			reply, err := Call(socket, Request{Command: "conversation", Text: text}, 5*time.Second)
			if err == nil {
				replies[i] = reply
			}
		}(i, text)
	}
	wg.Wait()

	for i, reply := range replies {
		assert.True(t, strings.HasPrefix(reply, ReplySigil), "reply %d = %q", i, reply)
	}

	records, err := st.GetConversationContext(10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].ID, records[1].ID)
}

func TestServerRejectsOversizeRequest(t *testing.T) {
	_, _, _, socket := startTestServer(t, Options{MaxRequestBytes: 4096})

	reply, err := Call(socket, Request{
		Command: "conversation",
		Text:    strings.Repeat("x", 8192),
	}, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, ErrorSigil), "reply = %q", reply)
	assert.Contains(t, reply, "request exceeds 4096 bytes")
}

func TestServerShutdownFlow(t *testing.T) {
	srv, d, _, socket := startTestServer(t, Options{})

	reply, err := Call(socket, Request{Command: "shutdown"}, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, ReplySigil), "reply = %q", reply)

	select {
	case <-d.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("shutdown was not signalled")
	}

	srv.Stop()
	<-srv.Done()

	_, err = os.Stat(socket)
	assert.True(t, os.IsNotExist(err), "socket file should be removed")

	_, err = Call(socket, Request{Command: "status"}, 500*time.Millisecond)
	assert.Error(t, err, "connections after shutdown must fail")
}

func TestServerStopIsIdempotent(t *testing.T) {
	srv, _, _, _ := startTestServer(t, Options{})
	srv.Stop()
	srv.Stop()
	<-srv.Done()
}

func TestReadRequestPartialToleratedOnTimeout(t *testing.T) {
	// A client that writes valid JSON but never half-closes still gets
	// served once the read deadline passes.
	_, _, _, socket := startTestServer(t, Options{ReadTimeout: 300 * time.Millisecond})

	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"command":"heartbeat"}`))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "Heartbeat recorded")
}
