// Package speech hands text to an external TTS collaborator over HTTP.
// The daemon works without one; an unconfigured speaker reports
// unavailable and the speak command carries that token back to the
// caller.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nova/internal/logging"
)

// Speaker posts synthesis requests to a configured TTS endpoint.
type Speaker struct {
	url    string
	voice  string
	speed  float64
	client *http.Client
}

// request is the JSON body the TTS service expects.
type request struct {
	Model          string  `json:"model,omitempty"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// New builds a Speaker. An empty url yields an unavailable speaker, not
// an error.
func New(url, voice string, speed float64) *Speaker {
	if speed <= 0 {
		speed = 1.0
	}
	return &Speaker{
		url:    url,
		voice:  voice,
		speed:  speed,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Available reports whether a TTS endpoint is configured.
func (s *Speaker) Available() bool {
	return s != nil && s.url != ""
}

// Speak sends text to the TTS endpoint and discards the audio; the
// daemon only cares whether synthesis succeeded. Empty text is a no-op.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if !s.Available() {
		return fmt.Errorf("no TTS endpoint configured")
	}
	if text == "" {
		return nil
	}

	body, err := json.Marshal(request{
		Model: "kokoro",
		Input: text,
		Voice: s.voice,
		Speed: s.speed,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logging.Voice("Speaking %d chars via %s", len(text), s.url)
	resp, err := s.client.Do(req)
	if err != nil {
		logging.VoiceWarn("TTS request failed: %v", err)
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logging.VoiceWarn("TTS error (status %d): %s", resp.StatusCode, string(errBody))
		return fmt.Errorf("TTS error (status %d): %s", resp.StatusCode, string(errBody))
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
