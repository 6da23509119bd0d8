package analysis

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"resume-zip-analyzer/internal/archive"
	"resume-zip-analyzer/internal/notify"
	"resume-zip-analyzer/internal/resume"
	"resume-zip-analyzer/internal/shared/metrics"
	"resume-zip-analyzer/internal/shared/telemetry"
	"resume-zip-analyzer/internal/shared/util"
)

const defaultInferenceTimeout = 60 * time.Second

// Per-file states reported in status_transition log fields.
const (
	statePending    = "pending"
	stateExtracting = "extracting"
	stateInferring  = "inferring"
)

// Extractor turns an unpacked file into plain text.
type Extractor interface {
	ExtractFile(ctx context.Context, path string, kind resume.Kind) (string, error)
}

// Inferrer turns document text into a structured record.
type Inferrer interface {
	Infer(ctx context.Context, text string) (resume.Record, error)
}

// Notifier receives run lifecycle updates. Failures are logged only.
type Notifier interface {
	Notify(ctx context.Context, u notify.Update) error
}

// Service runs the unzip, extract, infer pipeline over one archive.
type Service struct {
	Unpacker  archive.Unpacker
	Extractor Extractor
	Inferrer  Inferrer
	// Concurrency bounds in-flight files; values below 2 process sequentially.
	Concurrency      int
	InferenceTimeout time.Duration
	Notifier         Notifier

	now func() time.Time
}

// Analyze unpacks the archive read from r and produces exactly one outcome per
// recognized member. A per-file failure never aborts the run; an invalid
// archive or a cancelled context does.
func (s *Service) Analyze(ctx context.Context, r io.Reader, archiveName string) (*resume.Report, error) {
	if s == nil || s.Extractor == nil || s.Inferrer == nil {
		return nil, ErrNotConfigured
	}

	report := &resume.Report{
		RunID:       uuid.NewString(),
		ArchiveName: archiveName,
		StartedAt:   s.clock(),
	}
	metrics.IncRunStarted()
	s.notify(ctx, report, notify.StatusProcessing, "")

	scratch, err := s.Unpacker.Unpack(ctx, r, archiveName)
	if err != nil {
		s.abort(ctx, report, err)
		return nil, err
	}
	defer scratch.Close()

	report.Skipped = append([]string{}, scratch.Skipped...)
	telemetry.Info("analysis.run", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"run_id":     report.RunID,
		"archive":    archiveName,
		"files":      len(scratch.Files),
		"skipped":    len(scratch.Skipped),
		"status":     notify.StatusProcessing,
	})

	outcomes, err := s.processAll(ctx, report.RunID, scratch.Files)
	if err != nil {
		s.abort(ctx, report, err)
		return nil, err
	}
	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].Filename < outcomes[j].Filename })
	report.Outcomes = outcomes
	report.FinishedAt = s.clock()

	metrics.IncRunCompleted()
	metrics.ObserveRunDurationMs(durationMs(report.Duration()))
	telemetry.Info("analysis.run", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"run_id":      report.RunID,
		"archive":     archiveName,
		"status":      notify.StatusCompleted,
		"succeeded":   report.Succeeded(),
		"failed":      report.Failed(),
		"duration_ms": durationMs(report.Duration()),
	})
	s.notify(ctx, report, notify.StatusCompleted, "")
	return report, nil
}

// processAll fills one slot per file. Files not yet started when ctx is
// cancelled are never started.
func (s *Service) processAll(ctx context.Context, runID string, files []resume.File) ([]resume.Outcome, error) {
	outcomes := make([]resume.Outcome, len(files))

	if s.Concurrency < 2 {
		for i, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = s.processFile(ctx, runID, f)
		}
		return outcomes, nil
	}

	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for i, f := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = s.processFile(ctx, runID, f)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *Service) processFile(ctx context.Context, runID string, f resume.File) resume.Outcome {
	started := time.Now()
	s.logTransition(ctx, runID, f.Name, statePending, stateExtracting, nil)

	text, err := s.Extractor.ExtractFile(ctx, f.Path, f.Kind)
	if err != nil {
		return s.fail(ctx, runID, f.Name, stateExtracting, withArchiveName(err, f.Name))
	}
	s.logTransition(ctx, runID, f.Name, stateExtracting, stateInferring, map[string]any{
		"text_chars":  len(text),
		"text_sha256": util.Digest(text),
	})

	timeout := s.InferenceTimeout
	if timeout <= 0 {
		timeout = defaultInferenceTimeout
	}
	inferCtx, cancel := context.WithTimeout(ctx, timeout)
	inferStart := time.Now()
	rec, err := s.Inferrer.Infer(inferCtx, text)
	cancel()
	metrics.ObserveInferenceDurationMs(durationMs(time.Since(inferStart)))
	if err != nil {
		return s.fail(ctx, runID, f.Name, stateInferring, err)
	}

	metrics.ObserveFile(true)
	s.logTransition(ctx, runID, f.Name, stateInferring, string(resume.StatusSucceeded), map[string]any{
		"duration_ms": durationMs(time.Since(started)),
	})
	return resume.Succeeded(f.Name, rec)
}

func (s *Service) fail(ctx context.Context, runID, filename, from string, err error) resume.Outcome {
	code := classify(err)
	metrics.ObserveFile(false)
	s.logTransition(ctx, runID, filename, from, string(resume.StatusFailed), map[string]any{
		"error_code": code,
		"error":      err,
	})
	return resume.Failed(filename, code, err.Error())
}

func (s *Service) logTransition(ctx context.Context, runID, filename, from, to string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"run_id":            runID,
		"filename":          filename,
		"status":            to,
		"status_transition": from + "->" + to,
	}
	for k, v := range extra {
		fields[k] = v
	}
	if to == string(resume.StatusFailed) {
		telemetry.Warn("analysis.file", fields)
		return
	}
	telemetry.Info("analysis.file", fields)
}

func (s *Service) abort(ctx context.Context, report *resume.Report, err error) {
	metrics.IncRunFailed()
	telemetry.Error("analysis.run", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"run_id":     report.RunID,
		"archive":    report.ArchiveName,
		"status":     notify.StatusFailed,
		"error":      err,
	})
	s.notify(context.WithoutCancel(ctx), report, notify.StatusFailed, err.Error())
}

func (s *Service) notify(ctx context.Context, report *resume.Report, status, message string) {
	if s.Notifier == nil {
		return
	}
	u := notify.Update{
		RunID:     report.RunID,
		Archive:   report.ArchiveName,
		Status:    status,
		Message:   message,
		Succeeded: report.Succeeded(),
		Failed:    report.Failed(),
		Timestamp: s.clock(),
	}
	if err := s.Notifier.Notify(ctx, u); err != nil {
		telemetry.Warn("notify.failed", map[string]any{
			"run_id": report.RunID,
			"status": status,
			"error":  err,
		})
	}
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// Describe is a short human summary of a finished report.
func Describe(report *resume.Report) string {
	if report == nil {
		return ""
	}
	return fmt.Sprintf("%d files: %d succeeded, %d failed, %d skipped",
		len(report.Outcomes), report.Succeeded(), report.Failed(), len(report.Skipped))
}
