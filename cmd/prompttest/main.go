package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resume-zip-analyzer/internal/bootstrap"
	"resume-zip-analyzer/internal/extract"
	"resume-zip-analyzer/internal/resume"
	"resume-zip-analyzer/internal/shared/config"
	"resume-zip-analyzer/internal/shared/telemetry"
)

func main() {
	resumePath := flag.String("resume", "", "Path to resume file (pdf or docx)")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	provider := flag.String("provider", "", "LLM provider override")
	model := flag.String("model", "", "LLM model override")
	printPrompt := flag.Bool("print-prompt", false, "Print the prompt instead of calling the model")
	flag.Parse()

	telemetry.SetOutput(os.Stderr)
	defer telemetry.Sync()

	if strings.TrimSpace(*resumePath) == "" {
		exitErr("resume path is required")
	}
	kind, err := kindFromPath(*resumePath)
	if err != nil {
		exitErr(err.Error())
	}

	// Credentials are checked before the resume is read.
	cfg, err := loadConfig(*provider, *model)
	if err != nil {
		exitErr(err.Error())
	}

	ctx := context.Background()
	text, err := extract.New().ExtractFile(ctx, *resumePath, kind)
	if err != nil {
		exitErr(fmt.Sprintf("extract resume text: %v", err))
	}

	app, err := bootstrap.BuildPipeline(ctx, cfg)
	if err != nil {
		exitErr(err.Error())
	}
	defer app.Close()

	if *printPrompt {
		req := app.Inference.BuildRequest(text)
		fmt.Printf("SYSTEM:\n%s\n\nUSER:\n%s\n", req.System, req.Prompt)
		return
	}

	started := time.Now()
	rec, err := app.Inference.Infer(ctx, text)
	if err != nil {
		exitErr(fmt.Sprintf("infer: %v", err))
	}
	telemetry.Info("prompttest.done", map[string]any{
		"file":        filepath.Base(*resumePath),
		"provider":    cfg.LLMProvider,
		"model":       cfg.LLMModel,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	pretty, err := prettyJSON(rec)
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func kindFromPath(path string) (resume.Kind, error) {
	kind := resume.KindFromName(path)
	if !kind.Supported() {
		return "", fmt.Errorf("unsupported resume file type: %s", filepath.Ext(path))
	}
	return kind, nil
}

// loadConfig applies flag overrides before credentials are validated, so
// -provider can select a provider whose key is set while the default's is not.
func loadConfig(provider, model string) (config.Config, error) {
	if p := strings.TrimSpace(provider); p != "" {
		if err := os.Setenv("LLM_PROVIDER", p); err != nil {
			return config.Config{}, err
		}
		if strings.TrimSpace(model) == "" {
			_ = os.Unsetenv("LLM_MODEL")
		}
	}
	if m := strings.TrimSpace(model); m != "" {
		if err := os.Setenv("LLM_MODEL", m); err != nil {
			return config.Config{}, err
		}
	}
	return config.Load()
}

func prettyJSON(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
