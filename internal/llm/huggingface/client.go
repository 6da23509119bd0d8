package huggingface

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tmc/langchaingo/llms"
	hf "github.com/tmc/langchaingo/llms/huggingface"

	"resume-zip-analyzer/internal/llm"
)

const (
	provider = "huggingface"
	// DefaultModel is the instruct model the analyzer was tuned against.
	DefaultModel = "mistralai/Mistral-7B-Instruct-v0.2"
	// DefaultInferenceProvider serves DefaultModel behind the HF router.
	DefaultInferenceProvider = "featherless-ai"
)

// Options configure New.
type Options struct {
	Token string
	Model string
	// InferenceProvider selects the router backend, e.g. "featherless-ai".
	InferenceProvider string
	// URL replaces the router, e.g. a dedicated endpoint serving
	// /v1/chat/completions.
	URL        string
	HTTPClient *http.Client
}

// Client implements llm.Generator on the Hugging Face router's chat
// completions API through langchaingo. The chat template is applied
// server-side, so prompts are sent as plain text.
type Client struct {
	model llms.Model
}

// New constructs a Hugging Face backed generator.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("HUGGINGFACEHUB_API_TOKEN is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	inferenceProvider := strings.TrimSpace(opts.InferenceProvider)
	if inferenceProvider == "" {
		inferenceProvider = DefaultInferenceProvider
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	// langchaingo pins provider requests to the public router; a custom URL
	// is honoured by rewriting requests at the transport.
	if raw := strings.TrimSpace(opts.URL); raw != "" {
		base, err := url.Parse(raw)
		if err != nil || base.Scheme == "" || base.Host == "" {
			return nil, fmt.Errorf("invalid HUGGINGFACE_URL %q", raw)
		}
		next := httpClient.Transport
		if next == nil {
			next = http.DefaultTransport
		}
		rebased := *httpClient
		rebased.Transport = &rebaseTransport{base: base, prefix: "/" + inferenceProvider, next: next}
		httpClient = &rebased
	}

	m, err := hf.New(
		hf.WithToken(opts.Token),
		hf.WithModel(model),
		hf.WithInferenceProvider(inferenceProvider),
		hf.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create huggingface client: %w", err)
	}
	return &Client{model: m}, nil
}

// Generate sends system and user text as one chat turn and returns the reply.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		// Mapped to max_tokens on the chat completions route.
		opts = append(opts, llms.WithMaxLength(req.MaxTokens))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, FormatPrompt(req.System, req.Prompt), opts...)
	if err != nil {
		return "", llm.AsServiceError(provider, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &llm.ServiceError{Provider: provider, Err: llm.ErrEmptyResponse}
	}
	return out, nil
}

// FormatPrompt folds the system instruction into the user turn; the router
// client only sends a single user message.
func FormatPrompt(system, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if s := strings.TrimSpace(system); s != "" {
		return s + "\n\n" + prompt
	}
	return prompt
}

type rebaseTransport struct {
	base   *url.URL
	prefix string
	next   http.RoundTripper
}

func (t *rebaseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	path := strings.TrimPrefix(req.URL.Path, t.prefix)
	out.URL.Scheme = t.base.Scheme
	out.URL.Host = t.base.Host
	out.URL.Path = strings.TrimRight(t.base.Path, "/") + path
	out.URL.RawPath = ""
	out.Host = t.base.Host
	return t.next.RoundTrip(out)
}

var _ llm.Generator = (*Client)(nil)
