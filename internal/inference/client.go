package inference

import (
	"context"
	"errors"
	"fmt"

	"resume-zip-analyzer/internal/llm"
	"resume-zip-analyzer/internal/resume"
)

// SystemInstruction establishes the model's role for every request.
const SystemInstruction = "You are a professional resume analyzer. Extract structured data exactly in the requested format."

const defaultMaxTokens = 512

// Client turns resume text into a Record through a schema-constrained prompt.
type Client struct {
	Generator   llm.Generator
	Temperature float64
	MaxTokens   int
}

// NewClient returns a client with deterministic sampling.
func NewClient(gen llm.Generator, maxTokens int) *Client {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{Generator: gen, MaxTokens: maxTokens}
}

// BuildRequest assembles system instruction, format instructions and document text.
func (c *Client) BuildRequest(text string) llm.Request {
	return llm.Request{
		System:      SystemInstruction,
		Prompt:      buildUserPrompt(text),
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
}

func buildUserPrompt(text string) string {
	return fmt.Sprintf("%s\n\nResume Text:\n%s\n", FormatInstructions(), text)
}

// Infer calls the model once and parses its reply. Provider failures are
// returned as *llm.ServiceError, malformed replies as *SchemaParseError.
func (c *Client) Infer(ctx context.Context, text string) (resume.Record, error) {
	if c == nil || c.Generator == nil {
		return resume.Record{}, errors.New("inference client not configured")
	}
	raw, err := c.Generator.Generate(ctx, c.BuildRequest(text))
	if err != nil {
		return resume.Record{}, llm.AsServiceError("llm", err)
	}
	return ParseRecord(raw)
}
