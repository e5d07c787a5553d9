package operations

import (
	"context"
	"fmt"
	"log/slog"

	"gradecli/internal/infrastructure"
	"gradecli/pkg/contracts/domain"
)

// BatchRequest scores several files with the same settings.
type BatchRequest struct {
	Files     []string
	OutputDir string
	Context   string
	Settings  domain.ContextSettings
	Meta      domain.SheetMeta
	Defaults  domain.SheetMeta
	NoArchive bool
}

// BatchResult holds the per-file results and the run summary.
type BatchResult struct {
	Summary   domain.BatchSummary
	Results   []*FileResult
	Failures  map[string]error
	Cancelled bool
}

// RunBatch scores files one at a time. A failing file is recorded and the
// batch moves on; cancellation is honoured between files only. progress may
// be nil.
func (r *Runner) RunBatch(ctx context.Context, req BatchRequest, progress ProgressFunc) *BatchResult {
	ctx = infrastructure.EnsureTraceID(ctx)
	tracker := NewProgressTracker("batch", len(req.Files))
	out := &BatchResult{
		Summary:  domain.BatchSummary{Total: len(req.Files), Errors: map[string]string{}},
		Failures: map[string]error{},
	}

	r.logger.InfoContext(ctx, "Batch started",
		slog.Int("files", len(req.Files)),
		slog.String("context", req.Context))

	for _, file := range req.Files {
		if err := ctx.Err(); err != nil {
			out.Cancelled = true
			r.logger.WarnContext(ctx, "Batch cancelled",
				slog.Int("done", tracker.Current),
				slog.Int("total", len(req.Files)))
			break
		}

		job := Job{
			InputPath:        file,
			OutputDir:        req.OutputDir,
			Context:          req.Context,
			Settings:         req.Settings,
			Meta:             req.Meta,
			Defaults:         req.Defaults,
			Source:           domain.SourceBatchFile,
			SkipFailedSheets: true,
			NoArchive:        req.NoArchive,
		}
		res, err := r.ScoreFile(ctx, job)
		if err != nil {
			out.Summary.Failed++
			out.Summary.Errors[file] = err.Error()
			out.Failures[file] = err
		} else {
			out.Summary.Succeeded++
			out.Summary.Outputs = append(out.Summary.Outputs, res.OutputPath)
			if res.ArchiveID != "" {
				out.Summary.Archived = append(out.Summary.Archived, res.ArchiveID)
			}
			out.Results = append(out.Results, res)
		}

		tracker.Increment(fmt.Sprintf("Postęp: %d/%d", tracker.Current+1, len(req.Files)))
		if progress != nil {
			p := tracker.Snapshot()
			p.File = file
			p.Err = err
			progress(p)
		}
	}

	if len(out.Summary.Errors) == 0 {
		out.Summary.Errors = nil
	}
	r.logger.InfoContext(ctx, "Batch finished",
		slog.Int("succeeded", out.Summary.Succeeded),
		slog.Int("failed", out.Summary.Failed),
		slog.Bool("cancelled", out.Cancelled))
	return out
}
