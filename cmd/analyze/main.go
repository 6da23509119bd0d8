package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"resume-zip-analyzer/internal/analysis"
	"resume-zip-analyzer/internal/bootstrap"
	"resume-zip-analyzer/internal/report"
	"resume-zip-analyzer/internal/resume"
	"resume-zip-analyzer/internal/shared/config"
	"resume-zip-analyzer/internal/shared/telemetry"
)

func main() {
	format := flag.String("format", "json", "Output format: json or xlsx")
	outPath := flag.String("out", "", "Write the report to this path instead of stdout")
	quiet := flag.Bool("quiet", false, "Discard log output")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "usage: analyze [-format json|xlsx] [-out path] archive.zip\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	// stdout carries the report.
	telemetry.SetOutput(os.Stderr)
	if *quiet {
		telemetry.SetOutput(io.Discard)
	}
	defer telemetry.Sync()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := validateFormat(*format, *outPath); err != nil {
		exitErr(err.Error())
	}

	cfg, err := config.Load()
	if err != nil {
		exitErr(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := bootstrap.BuildPipeline(ctx, cfg)
	if err != nil {
		exitErr(err.Error())
	}
	defer app.Close()

	archivePath := flag.Arg(0)
	f, err := os.Open(archivePath)
	if err != nil {
		exitErr(fmt.Sprintf("open archive: %v", err))
	}
	defer f.Close()

	rep, err := app.AnalysisService.Analyze(ctx, f, filepath.Base(archivePath))
	if err != nil {
		exitErr(err.Error())
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		file, err := os.Create(*outPath)
		if err != nil {
			exitErr(fmt.Sprintf("create output: %v", err))
		}
		defer file.Close()
		out = file
	}
	if err := writeReport(out, rep, *format); err != nil {
		exitErr(fmt.Sprintf("write report: %v", err))
	}
	_, _ = fmt.Fprintln(os.Stderr, analysis.Describe(rep))
}

func validateFormat(format, outPath string) error {
	switch strings.ToLower(format) {
	case "json":
		return nil
	case "xlsx":
		if outPath == "" {
			return fmt.Errorf("-format xlsx requires -out")
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeReport(w io.Writer, rep *resume.Report, format string) error {
	if strings.EqualFold(format, "xlsx") {
		return report.WriteXLSX(w, rep)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
