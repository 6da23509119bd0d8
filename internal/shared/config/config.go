package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported LLM providers.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderGemini      = "gemini"
)

// Error reports a configuration problem detected before any work starts.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	CORSAllowOrigin []string
	AccessToken     string

	LLMProvider         string
	LLMModel            string
	LLMTemperature      float64
	LLMMaxTokens        int
	HuggingFaceToken    string
	HuggingFaceURL      string
	HuggingFaceProvider string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	GoogleAPIKey        string

	InferenceTimeout    time.Duration
	AnalysisConcurrency int
	MaxUploadBytes      int64
	MaxMemberBytes      int64
	MaxMembers          int
	ScratchDir          string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string

	RabbitMQURL      string
	RabbitMQExchange string

	RateLimitPerMinute int
}

// Load reads configuration from environment variables with sensible defaults.
// It fails when the selected provider has no credential or a numeric key is malformed.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience; real env wins.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	cfg := Config{
		Env:             normalizeEnv(getEnv("ENV", "dev")),
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		AccessToken:     strings.TrimSpace(os.Getenv("ACCESS_TOKEN")),

		LLMProvider:         NormalizeProvider(getEnv("LLM_PROVIDER", ProviderHuggingFace)),
		LLMModel:            strings.TrimSpace(os.Getenv("LLM_MODEL")),
		HuggingFaceToken:    strings.TrimSpace(os.Getenv("HUGGINGFACEHUB_API_TOKEN")),
		HuggingFaceURL:      strings.TrimSpace(os.Getenv("HUGGINGFACE_URL")),
		HuggingFaceProvider: getEnv("HUGGINGFACE_PROVIDER", "featherless-ai"),
		OpenAIAPIKey:        strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:       strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		GoogleAPIKey:        strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),

		ScratchDir: strings.TrimSpace(os.Getenv("SCRATCH_DIR")),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:        strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Prefix:        strings.TrimSpace(os.Getenv("S3_PREFIX")),
		S3Endpoint:      strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		S3AccessKey:     strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
		S3SecretKey:     strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),

		RabbitMQURL:      strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "resume.analysis"),
	}

	if cfg.LLMProvider == "" {
		return Config{}, &Error{Key: "LLM_PROVIDER", Reason: "must be one of huggingface, openai, gemini"}
	}

	var err error
	if cfg.LLMTemperature, err = getFloat("LLM_TEMPERATURE", 0); err != nil {
		return Config{}, err
	}
	if cfg.LLMMaxTokens, err = getInt("LLM_MAX_TOKENS", 512); err != nil {
		return Config{}, err
	}
	timeoutSeconds, err := getInt("INFERENCE_TIMEOUT_SECONDS", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.InferenceTimeout = time.Duration(timeoutSeconds) * time.Second
	if cfg.AnalysisConcurrency, err = getInt("ANALYSIS_CONCURRENCY", 1); err != nil {
		return Config{}, err
	}
	uploadMB, err := getInt("MAX_UPLOAD_MB", 50)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(uploadMB) << 20
	memberMB, err := getInt("MAX_MEMBER_MB", 25)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxMemberBytes = int64(memberMB) << 20
	if cfg.MaxMembers, err = getInt("MAX_MEMBERS", 500); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 30); err != nil {
		return Config{}, err
	}

	if cfg.LLMModel == "" {
		cfg.LLMModel = DefaultModel(cfg.LLMProvider)
	}
	if err := cfg.validateCredentials(); err != nil {
		return Config{}, err
	}
	if cfg.ObjectStoreType == "s3" && cfg.S3Bucket == "" {
		return Config{}, &Error{Key: "S3_BUCKET", Reason: "required when OBJECT_STORE=s3"}
	}

	return cfg, nil
}

func (c Config) validateCredentials() error {
	switch c.LLMProvider {
	case ProviderHuggingFace:
		if c.HuggingFaceToken == "" {
			return &Error{Key: "HUGGINGFACEHUB_API_TOKEN", Reason: "missing credential for huggingface provider"}
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return &Error{Key: "OPENAI_API_KEY", Reason: "missing credential for openai provider"}
		}
	case ProviderGemini:
		if c.GoogleAPIKey == "" {
			return &Error{Key: "GOOGLE_API_KEY", Reason: "missing credential for gemini provider"}
		}
	}
	return nil
}

// DefaultModel is the model used when LLM_MODEL is unset.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.5-flash"
	default:
		return "mistralai/Mistral-7B-Instruct-v0.2"
	}
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &Error{Key: key, Reason: fmt.Sprintf("invalid non-negative integer %q", raw)}
	}
	if n == 0 {
		return def, nil
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, &Error{Key: key, Reason: fmt.Sprintf("invalid non-negative number %q", raw)}
	}
	return f, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

// NormalizeProvider maps provider names and aliases to a Provider constant,
// or "" when unknown.
func NormalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "huggingface", "hf":
		return ProviderHuggingFace
	case "openai":
		return ProviderOpenAI
	case "gemini", "google":
		return ProviderGemini
	default:
		return ""
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3", "r2":
		return "s3"
	default:
		return "local"
	}
}
