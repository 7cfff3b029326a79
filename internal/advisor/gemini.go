package advisor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	model  string
	config genai.ClientConfig

	once   sync.Once
	models *genai.Models
	err    error
}

// NewGeminiClient creates a client. An empty endpoint uses the SDK default
// base URL and a nil httpClient uses the SDK default transport. The
// underlying SDK client is created on first use.
func NewGeminiClient(endpoint, model, apiKey string, httpClient *http.Client) *GeminiClient {
	return &GeminiClient{
		model: model,
		config: genai.ClientConfig{
			APIKey:     apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
			HTTPOptions: genai.HTTPOptions{
				BaseURL: strings.TrimRight(endpoint, "/"),
			},
		},
	}
}

func (c *GeminiClient) client(ctx context.Context) (*genai.Models, error) {
	c.once.Do(func() {
		client, err := genai.NewClient(ctx, &c.config)
		if err != nil {
			c.err = fmt.Errorf("create gemini client: %w", err)
			return
		}
		c.models = client.Models
	})
	return c.models, c.err
}

// Generate implements Generator. The result is the text of the first
// candidate, or "" when the model returned none.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	models, err := c.client(ctx)
	if err != nil {
		return "", err
	}

	resp, err := models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}
