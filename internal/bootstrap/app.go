package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-zip-analyzer/internal/analysis"
	"resume-zip-analyzer/internal/archive"
	"resume-zip-analyzer/internal/extract"
	"resume-zip-analyzer/internal/inference"
	"resume-zip-analyzer/internal/llm"
	"resume-zip-analyzer/internal/llm/gemini"
	"resume-zip-analyzer/internal/llm/huggingface"
	openai "resume-zip-analyzer/internal/llm/openai"
	"resume-zip-analyzer/internal/notify"
	"resume-zip-analyzer/internal/shared/config"
	"resume-zip-analyzer/internal/shared/server"
	"resume-zip-analyzer/internal/shared/storage/object"
	localstore "resume-zip-analyzer/internal/shared/storage/object/local"
	s3store "resume-zip-analyzer/internal/shared/storage/object/s3"
	"resume-zip-analyzer/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	Store           object.ObjectStore
	Generator       llm.Generator
	Inference       *inference.Client
	Publisher       *notify.AMQPPublisher
	AnalysisService *analysis.Service
	AnalysisHandler *analysis.Handler
}

// Build prepares every dependency and the HTTP router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app, err := BuildPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Store = store
	app.AnalysisHandler = analysis.NewHandler(app.AnalysisService, store, cfg.MaxUploadBytes)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.AnalysisHandler,
	})
	return app, nil
}

// BuildPipeline prepares the analysis service without any HTTP surface.
func BuildPipeline(ctx context.Context, cfg config.Config) (*App, error) {
	gen, err := buildGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	infer := inference.NewClient(gen, cfg.LLMMaxTokens)
	infer.Temperature = cfg.LLMTemperature

	app := &App{
		Config:    cfg,
		Generator: gen,
		Inference: infer,
	}

	svc := &analysis.Service{
		Unpacker: archive.Unpacker{
			Root:           cfg.ScratchDir,
			MaxMemberBytes: cfg.MaxMemberBytes,
			MaxMembers:     cfg.MaxMembers,
		},
		Extractor:        extract.New(),
		Inferrer:         infer,
		Concurrency:      cfg.AnalysisConcurrency,
		InferenceTimeout: cfg.InferenceTimeout,
	}

	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		pub, err := notify.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			// Notifications are optional; the pipeline runs without them.
			telemetry.Warn("bootstrap.notify_disabled", map[string]any{"error": err})
		} else {
			app.Publisher = pub
			svc.Notifier = pub
		}
	}

	app.AnalysisService = svc
	telemetry.Info("bootstrap.ready", map[string]any{
		"provider":    cfg.LLMProvider,
		"model":       cfg.LLMModel,
		"concurrency": cfg.AnalysisConcurrency,
		"notify":      app.Publisher != nil,
	})
	return app, nil
}

// Close releases long-lived connections.
func (a *App) Close() error {
	if a == nil || a.Publisher == nil {
		return nil
	}
	return a.Publisher.Close()
}

func buildGenerator(ctx context.Context, cfg config.Config) (llm.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		client, err := openai.NewClient(openai.Options{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.LLMModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.InferenceTimeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderGemini:
		client, err := gemini.New(ctx, gemini.Options{APIKey: cfg.GoogleAPIKey, Model: cfg.LLMModel})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderHuggingFace, "":
		client, err := huggingface.New(huggingface.Options{
			Token:             cfg.HuggingFaceToken,
			Model:             cfg.LLMModel,
			URL:               cfg.HuggingFaceURL,
			InferenceProvider: cfg.HuggingFaceProvider,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, &config.Error{Key: "LLM_PROVIDER", Reason: fmt.Sprintf("unsupported provider %q", cfg.LLMProvider)}
	}
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:    cfg.AWSRegion,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}
