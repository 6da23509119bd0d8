package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"resume-zip-analyzer/internal/llm"
)

const (
	provider     = "gemini"
	DefaultModel = "gemini-2.5-flash"
)

// Options configure New.
type Options struct {
	APIKey string
	Model  string
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Generator with the Gemini API.
type Client struct {
	model  string
	models contentGenerator
}

// New constructs a Gemini backed generator.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{model: model, models: client.Models}, nil
}

// Generate asks Gemini for a JSON reply.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType: "application/json",
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &llm.ServiceError{Provider: provider, StatusCode: apiErr.Code, Err: err}
		}
		return "", llm.AsServiceError(provider, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &llm.ServiceError{Provider: provider, Err: llm.ErrEmptyResponse}
	}
	return text, nil
}

var _ llm.Generator = (*Client)(nil)
