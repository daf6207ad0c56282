package server

import (
	"encoding/json"
	"fmt"
)

// Request is the single JSON object a client writes per connection.
// Command selects the handler; the remaining fields are command-specific
// and ignored by handlers that do not use them.
type Request struct {
	Command     string          `json:"command"`
	Text        string          `json:"text,omitempty"`
	MessageType string          `json:"message_type,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Request     string          `json:"request,omitempty"`
	Priority    string          `json:"priority,omitempty"`
	Session     string          `json:"session,omitempty"`
	Name        string          `json:"name,omitempty"`
	Input       string          `json:"input,omitempty"`
}

// ParseRequest decodes the wire bytes of one request.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("invalid request format: %v", err)
	}
	if req.Command == "" {
		return Request{}, fmt.Errorf("missing required field: command")
	}
	return req, nil
}
