package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
)

// Call sends one request to a daemon socket and returns the raw reply.
// The CLI and the external collaborators use it; the daemon never does.
func Call(socketPath string, req Request, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return "", fmt.Errorf("cannot reach daemon at %s: %w", socketPath, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	// Half-close tells the server the request is complete.
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}
	return string(reply), nil
}
