package extract

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiBackend implements Generator against the Gemini API. One backend is
// created per process and shared across extractions; the underlying client
// is safe for concurrent use.
type GeminiBackend struct {
	client     *genai.Client
	httpClient *http.Client
	model      string
}

// NewGeminiBackend creates the backend. Credentials come from the
// environment (GEMINI_API_KEY), same as the rest of the genai tooling.
func NewGeminiBackend(ctx context.Context, model string) (*GeminiBackend, error) {
	httpClient := &http.Client{}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiBackend: create genai client: %w", err)
	}
	return &GeminiBackend{client: client, httpClient: httpClient, model: model}, nil
}

// Generate sends the prompt and returns the raw response text. Generation
// is pinned to low temperature and a fixed seed: field extraction wants
// deterministic output, not creativity.
func (g *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.1),
		Seed:            genai.Ptr[int32](42),
		MaxOutputTokens: 256,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response from model")
	}
	return text, nil
}

// Close releases the backend's connection pool.
func (g *GeminiBackend) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}
