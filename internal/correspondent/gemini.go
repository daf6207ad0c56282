package correspondent

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"nova/internal/logging"
)

// GeminiGenerator composes bridge replies with Google's Gemini API.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini creates a Gemini-backed generator. A missing API key is an
// error here rather than a degraded mode: the correspondent has no purpose
// without its LLM.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY)")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model, timeout: timeout}, nil
}

// Generate sends one prompt and returns the model's text.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Gemini generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Gemini returned an empty reply")
	}
	logging.CorrespondentDebug("Gemini %s produced %d bytes", g.model, len(text))
	return text, nil
}

// Name identifies the generator in logs.
func (g *GeminiGenerator) Name() string {
	return fmt.Sprintf("gemini:%s", g.model)
}

// Close releases the underlying client. The genai SDK client has no
// explicit close, so there is nothing to release.
func (g *GeminiGenerator) Close() error {
	return nil
}
