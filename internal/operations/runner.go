package operations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"gradecli/internal/aggregate"
	"gradecli/internal/config"
	apperrors "gradecli/internal/errors"
	"gradecli/internal/exporter"
	"gradecli/internal/grading"
	"gradecli/internal/infrastructure"
	"gradecli/internal/sheets"
	"gradecli/pkg/contracts/domain"
)

// ArchiveWriter stores one scored table as an archive document.
type ArchiveWriter interface {
	Write(ctx context.Context, contextName, title string, table *domain.ScoredTable, meta map[string]any) (string, error)
}

// StdinPath names standard input as a manual input source.
const StdinPath = "-"

// Job describes one input file to score.
type Job struct {
	InputPath string
	// OutputPath overrides the derived "<stem>_przetworzone.xlsx" location.
	OutputPath string
	// OutputDir holds the derived result; empty keeps it next to the input.
	OutputDir string
	Context   string
	Settings  domain.ContextSettings
	// Meta given by the caller; a META sheet only fills empty fields.
	Meta domain.SheetMeta
	// Defaults fill what is still empty after the META sheet.
	Defaults domain.SheetMeta
	Source   string
	// SkipFailedSheets keeps going when one sheet cannot be scored.
	SkipFailedSheets bool
	NoArchive        bool
}

// FileResult is the outcome of scoring one input file.
type FileResult struct {
	InputPath    string
	OutputPath   string
	Tables       []*domain.ScoredTable
	Aggregate    domain.AggregateResult
	Meta         domain.SheetMeta
	ShortSummary string
	ArchiveID    string
	// ArchiveErr is set when the result was exported but not archived.
	ArchiveErr  error
	SheetErrors []*OperationError
	Duration    time.Duration
}

// Advisories counts advisories over all scored sheets.
func (r *FileResult) Advisories() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Advisories)
	}
	return n
}

// Runner scores input files: read, normalize, grade, export and archive.
type Runner struct {
	engine   *grading.Engine
	exporter *exporter.WorkbookExporter
	archive  ArchiveWriter
	metrics  *infrastructure.GradingMetrics
	tracer   trace.Tracer
	logger   *slog.Logger
	suffix   string
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMetrics records scoring metrics.
func WithMetrics(m *infrastructure.GradingMetrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer records a span per file.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithResultSuffix changes the result file suffix.
func WithResultSuffix(s string) RunnerOption {
	return func(r *Runner) { r.suffix = s }
}

// NewRunner creates a runner. archive may be nil, in which case nothing is
// archived.
func NewRunner(archive ArchiveWriter, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		engine:   grading.NewEngine(logger),
		exporter: exporter.NewWorkbookExporter(logger),
		archive:  archive,
		tracer:   tracenoop.NewTracerProvider().Tracer("operations"),
		logger:   logger.With(slog.String("component", "runner")),
		suffix:   config.ResultFileSuffix,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResultPath returns where the result workbook of job is written. Manual
// input read from stdin is named after config.ManualResultStem.
func (r *Runner) ResultPath(job Job) string {
	if job.OutputPath != "" {
		return job.OutputPath
	}
	input := job.InputPath
	if job.Source == domain.SourceManualInput && (input == "" || input == StdinPath) {
		input = config.ManualResultStem
	}
	return exporter.ResultPath(input, job.OutputDir, r.suffix)
}

// ScoreFile runs one job. Scoring is all-or-nothing per sheet; unless
// SkipFailedSheets is set the first failing sheet fails the file. Archive
// failures are reported on the result and do not fail the file.
func (r *Runner) ScoreFile(ctx context.Context, job Job) (*FileResult, error) {
	return r.run(ctx, "score_file", job, func() (*sheets.Workbook, error) {
		return sheets.ReadWorkbook(job.InputPath)
	})
}

// ScoreManual grades a hand-entered list read from in (see
// sheets.ParseManual) as a single sheet named Wyniki. job.InputPath only
// names the list; StdinPath marks standard input.
func (r *Runner) ScoreManual(ctx context.Context, job Job, in io.Reader) (*FileResult, error) {
	job.Source = domain.SourceManualInput
	return r.run(ctx, "score_manual", job, func() (*sheets.Workbook, error) {
		raw, err := sheets.ParseManual(in)
		if err != nil {
			return nil, err
		}
		return &sheets.Workbook{Path: job.InputPath, Format: "manual", Sheets: []sheets.RawSheet{raw}}, nil
	})
}

func (r *Runner) run(ctx context.Context, spanName string, job Job, load func() (*sheets.Workbook, error)) (res *FileResult, err error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := r.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("file", filepath.Base(job.InputPath)),
		attribute.String("context", job.Context),
	))
	start := r.now()
	defer func() {
		elapsed := r.now().Sub(start)
		if res != nil {
			res.Duration = elapsed
		}
		if err != nil {
			infrastructure.RecordError(ctx, err)
		}
		r.metrics.RecordFile(ctx, elapsed, err)
		span.End()
	}()

	logger := r.logger.With(slog.String("file", job.InputPath))
	logger.InfoContext(ctx, "Scoring file", slog.String("source", job.Source))

	policy := job.Settings.Policy()
	if err := grading.ValidatePolicy(policy); err != nil {
		return nil, NewExecutionError(StepScore, job.InputPath, err)
	}

	wb, err := load()
	if err != nil {
		return nil, NewExecutionError(StepRead, job.InputPath, err)
	}

	res = &FileResult{InputPath: job.InputPath, OutputPath: r.ResultPath(job)}
	res.Meta = job.Meta
	if found, ok := sheets.FindMeta(wb); ok {
		res.Meta = sheets.Merge(res.Meta, found)
	}
	res.Meta = sheets.Merge(res.Meta, job.Defaults)

	for _, raw := range wb.Sheets {
		if sheets.IsMetaSheet(raw.Name) {
			continue
		}
		table, sheetErr := r.scoreSheet(ctx, job.InputPath, raw, policy)
		if sheetErr != nil {
			if !job.SkipFailedSheets {
				return nil, sheetErr
			}
			logger.WarnContext(ctx, "Sheet skipped",
				slog.String("sheet", raw.Name),
				slog.String("error", sheetErr.Error()))
			res.SheetErrors = append(res.SheetErrors, sheetErr)
			continue
		}
		res.Tables = append(res.Tables, table)
	}

	if len(res.Tables) == 0 {
		cause := error(apperrors.NewFormatError("workbook has no scorable sheets", nil).WithContext("path", job.InputPath))
		if len(res.SheetErrors) > 0 {
			cause = res.SheetErrors[0]
		}
		return nil, NewExecutionError(StepScore, job.InputPath, cause)
	}

	res.Aggregate = aggregate.Aggregate(res.Tables, job.Settings.WeightsBySheet, job.Settings.UseWeightedMean)
	res.ShortSummary = aggregate.ShortSummary(res.Tables[0].Rows)

	if err := r.exporter.Write(res.OutputPath, res.Tables, res.Aggregate, policy); err != nil {
		return nil, NewExecutionError(StepExport, job.InputPath, err)
	}

	if r.archive != nil && !job.NoArchive {
		r.archiveFirst(ctx, job, policy, res)
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"sheets":     len(res.Tables),
		"advisories": res.Advisories(),
	})
	logger.InfoContext(ctx, "File scored",
		slog.Int("sheets", len(res.Tables)),
		slog.Int("skipped_sheets", len(res.SheetErrors)),
		slog.String("output", res.OutputPath))
	return res, nil
}

func (r *Runner) scoreSheet(ctx context.Context, file string, raw sheets.RawSheet, policy domain.GradingPolicy) (*domain.ScoredTable, *OperationError) {
	table, err := sheets.Normalize(raw)
	if err != nil {
		return nil, NewSheetError(StepNormalize, file, raw.Name, err)
	}
	scored, err := r.engine.Score(ctx, table, policy)
	if err != nil {
		return nil, NewSheetError(StepScore, file, raw.Name, err)
	}
	r.metrics.RecordSheet(ctx, scored.Sheet, scored.DroppedRows, len(scored.Advisories))
	return scored, nil
}

// archiveFirst stores the first scored sheet with the run's metadata.
func (r *Runner) archiveFirst(ctx context.Context, job Job, policy domain.GradingPolicy, res *FileResult) {
	first := res.Tables[0]
	id, err := r.archive.Write(ctx, job.Context, ArchiveTitle(job, res), first, ArchiveMeta(job, policy, res))
	if err != nil {
		res.ArchiveErr = NewExecutionError(StepArchive, job.InputPath, err)
		r.logger.WarnContext(ctx, "Result not archived",
			slog.String("file", job.InputPath),
			slog.String("error", err.Error()))
		return
	}
	res.ArchiveID = id
	r.metrics.RecordDocumentWritten(ctx)
}

// ArchiveTitle names the archived result: "<file> – <sheet>", or
// "Ręczne wprowadzanie – <result stem>" for manual input.
func ArchiveTitle(job Job, res *FileResult) string {
	if job.Source == domain.SourceManualInput {
		base := filepath.Base(res.OutputPath)
		return "Ręczne wprowadzanie – " + strings.TrimSuffix(base, filepath.Ext(base))
	}
	return fmt.Sprintf("%s – %s", filepath.Base(job.InputPath), res.Tables[0].Sheet)
}

// ArchiveMeta builds the metadata stored with an archived result.
func ArchiveMeta(job Job, policy domain.GradingPolicy, res *FileResult) map[string]any {
	first := res.Tables[0]

	source := job.Source
	if source == "" {
		source = domain.SourceSingleFile
	}
	var sheetWeight any
	if job.Settings.UseWeightedMean {
		sheetWeight = job.Settings.WeightsBySheet.Weight(first.Sheet)
	}
	className := strings.TrimSpace(res.Meta.ClassName)
	if className == "" {
		className = first.Sheet
	}
	school := strings.TrimSpace(res.Meta.School)
	if school == "" {
		school = strings.TrimSpace(job.Context)
	}
	var summary any
	if res.ShortSummary != "" {
		summary = res.ShortSummary
	}

	return map[string]any{
		domain.MetaSource:       source,
		domain.MetaInputPath:    job.InputPath,
		domain.MetaOutputPath:   res.OutputPath,
		domain.MetaSheet:        first.Sheet,
		domain.MetaMaxPoints:    policy.MaxPoints,
		domain.MetaRoundBefore:  policy.RoundBeforeGrading,
		domain.MetaUseWeighted:  job.Settings.UseWeightedMean,
		domain.MetaScaleRows:    policy.Scale,
		domain.MetaSheetWeight:  sheetWeight,
		domain.MetaClassName:    className,
		domain.MetaSubject:      strings.TrimSpace(res.Meta.Subject),
		domain.MetaSchool:       school,
		domain.MetaShortSummary: summary,
	}
}
