package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// ErrNotConfigured is returned when no API key was supplied
var ErrNotConfigured = errors.New("gemini API key is not configured")

// Config holds the Gemini settings the client is constructed with
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
}

// Client wraps the genai SDK for single-shot JSON generation
type Client struct {
	client *genai.Client
	model  string
	temp   float32
	log    zerolog.Logger
}

// NewClient creates a Gemini client. An empty API key yields an unconfigured
// client whose calls fail with ErrNotConfigured.
func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	c := &Client{
		model: cfg.Model,
		temp:  cfg.Temperature,
		log:   log.With().Str("provider", "gemini").Logger(),
	}
	if c.model == "" {
		c.model = "gemini-2.0-flash"
	}
	if cfg.APIKey == "" {
		return c, nil
	}

	config := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		}
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = client
	return c, nil
}

func (c *Client) Name() string {
	return "gemini"
}

func (c *Client) Configured() bool {
	return c.client != nil
}

// GenerateJSON asks the model for a JSON document and returns its raw text
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if c.temp > 0 {
		temp := c.temp
		config.Temperature = &temp
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	var content strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				content.WriteString(part.Text)
			}
		}
		// Only the first candidate is used
		break
	}

	if content.Len() == 0 {
		return "", errors.New("gemini returned no text")
	}
	if resp.UsageMetadata != nil {
		c.log.Debug().
			Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount).
			Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount).
			Msg("generation usage")
	}
	return content.String(), nil
}
