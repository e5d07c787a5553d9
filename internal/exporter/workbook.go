package exporter

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"gradecli/internal/aggregate"
	apperrors "gradecli/internal/errors"
	"gradecli/pkg/contracts/domain"
)

// Sheet and label texts of the result workbook.
const (
	SummarySheetPrefix = "Podsumowanie – "
	GlobalSummarySheet = "Zbiorcze podsumowanie"

	maxSheetNameLen = 31

	methodRounded   = "Metoda 1 – zaokrąglanie procentu"
	methodUnrounded = "Metoda 2 – bez zaokrąglania (lo ≤ % < hi+1)"
)

// percentNumFmt is Excel's built-in "0.00%" format.
const percentNumFmt = 10

// WorkbookExporter writes scored tables and their summaries to xlsx.
type WorkbookExporter struct {
	logger *slog.Logger
}

// NewWorkbookExporter creates a workbook exporter.
func NewWorkbookExporter(logger *slog.Logger) *WorkbookExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookExporter{logger: logger.With(slog.String("component", "exporter"))}
}

// ResultPath returns "<dir>/<stem>_przetworzone.xlsx" for an input file.
// An empty dir keeps the output next to the input.
func ResultPath(inputPath, dir, suffix string) string {
	base := filepath.Base(inputPath)
	stem := base[:len(base)-len(filepath.Ext(base))]
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	return filepath.Join(dir, stem+suffix)
}

// Write saves the result workbook at path. Each scored table gets its own
// sheet followed by a summary sheet; a global summary closes the workbook.
// The file is written to a temporary name first and renamed into place.
func (e *WorkbookExporter) Write(path string, tables []*domain.ScoredTable, agg domain.AggregateResult, policy domain.GradingPolicy) error {
	f := excelize.NewFile()
	defer f.Close()

	b := &workbookBuilder{f: f, policy: policy, used: map[string]bool{}}
	if err := b.build(tables, agg); err != nil {
		return apperrors.NewStorageError("failed to build result workbook", err).WithContext("path", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.NewStorageError("failed to create output directory", err).WithContext("path", path)
	}
	tmp := path + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return apperrors.NewStorageError("failed to save result workbook", err).WithContext("path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return apperrors.NewStorageError("failed to move result workbook into place", err).WithContext("path", path)
	}

	e.logger.Info("Result workbook written",
		slog.String("path", path),
		slog.Int("sheets", len(tables)))
	return nil
}

type workbookBuilder struct {
	f       *excelize.File
	policy  domain.GradingPolicy
	used    map[string]bool
	created int
	pctFmt  int
}

func (b *workbookBuilder) build(tables []*domain.ScoredTable, agg domain.AggregateResult) error {
	style, err := b.f.NewStyle(&excelize.Style{NumFmt: percentNumFmt})
	if err != nil {
		return err
	}
	b.pctFmt = style

	for _, t := range tables {
		name, err := b.newSheet(t.Sheet)
		if err != nil {
			return err
		}
		if err := b.writeScored(name, t); err != nil {
			return fmt.Errorf("sheet %q: %w", t.Sheet, err)
		}

		summary, err := b.newSheet(SummarySheetPrefix + t.Sheet)
		if err != nil {
			return err
		}
		stats := agg.PerSheet[t.Sheet]
		if _, ok := agg.PerSheet[t.Sheet]; !ok {
			stats = aggregate.Summarize(t.Rows)
		}
		if err := b.writeSummary(summary, stats, "Liczba uczniów", "Statystyka", nil); err != nil {
			return fmt.Errorf("summary %q: %w", t.Sheet, err)
		}
	}

	global, err := b.newSheet(GlobalSummarySheet)
	if err != nil {
		return err
	}
	if agg.Global.Count == 0 {
		return b.setRow(global, 1, "Ocena", "Łącznie uczniów", nil, "Statystyka (globalnie)", "Wartość")
	}
	return b.writeSummary(global, agg.Global, "Łącznie uczniów", "Statystyka (globalnie)", agg.WeightedMean)
}

// newSheet adds a sheet named after want, truncated to Excel's limit and made
// unique. The first call reuses the default sheet.
func (b *workbookBuilder) newSheet(want string) (string, error) {
	name := uniqueSheetName(truncateRunes(sanitizeSheetName(want), maxSheetNameLen), b.used)
	b.used[name] = true

	if b.created == 0 {
		b.created++
		return name, b.f.SetSheetName(b.f.GetSheetName(0), name)
	}
	b.created++
	_, err := b.f.NewSheet(name)
	return name, err
}

func (b *workbookBuilder) writeScored(sheet string, t *domain.ScoredTable) error {
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := b.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, row := range t.Cells() {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := b.f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(t.Rows) > 0 {
		first, _ := excelize.CoordinatesToCellName(4, 2)
		last, _ := excelize.CoordinatesToCellName(4, len(t.Rows)+1)
		if err := b.f.SetCellStyle(sheet, first, last, b.pctFmt); err != nil {
			return err
		}
	}

	// grading info block below the data
	r := len(t.Rows) + 3
	lines := [][]any{
		{"Informacje o ocenianiu:"},
		{fmt.Sprintf("Maksymalna liczba punktów (testu): %v", pointsValue(b.policy.MaxPoints))},
		{"Metoda oceniania: " + methodLabel(b.policy.RoundBeforeGrading)},
		{"Kryteria ocen (progi procentowe):"},
	}
	for i, l := range lines {
		if err := b.setRow(sheet, r+i, l...); err != nil {
			return err
		}
	}
	r += len(lines)
	for _, band := range b.policy.Scale {
		text := fmt.Sprintf("(%d, %d, %q)", int(band.Low), int(band.High), band.Label)
		if err := b.setRow(sheet, r, text); err != nil {
			return err
		}
		r++
	}
	return nil
}

// writeSummary lays out the grade histogram in A:B, statistics in D:E and the
// scale thresholds below both.
func (b *workbookBuilder) writeSummary(sheet string, s domain.SheetStats, countLabel, statsLabel string, weighted *float64) error {
	if err := b.setRow(sheet, 1, "Ocena", countLabel, nil, statsLabel, "Wartość"); err != nil {
		return err
	}
	for i, g := range domain.GradeBuckets {
		if err := b.setRow(sheet, i+2, g, s.Histogram[g]); err != nil {
			return err
		}
	}

	stats := [][2]any{
		{"Średnia punktów", round2(s.MeanPoints)},
		{"Mediana punktów", round2(s.MedianPoints)},
		{"Min punktów (uczeń)", int(math.Trunc(s.MinPoints))},
		{"Max punktów (uczeń)", int(math.Trunc(s.MaxPoints))},
		{"Maksymalna liczba punktów (testu)", pointsValue(b.policy.MaxPoints)},
		{countLabel, s.Count},
		{"Metoda oceniania", methodLabel(b.policy.RoundBeforeGrading)},
	}
	if weighted != nil {
		stats = append(stats, [2]any{"Średnia punktów (ważona)", round2(*weighted)})
	}
	for i, kv := range stats {
		for col, v := range kv {
			cell, _ := excelize.CoordinatesToCellName(4+col, i+2)
			if err := b.f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	r := len(stats) + 4
	if err := b.setRow(sheet, r, "Kryteria ocen (progi procentowe):"); err != nil {
		return err
	}
	if err := b.setRow(sheet, r+1, "Od (%)", "Do (%)", "Ocena"); err != nil {
		return err
	}
	for i, band := range b.policy.Scale {
		if err := b.setRow(sheet, r+2+i, band.Low, band.High, band.Label); err != nil {
			return err
		}
	}
	return nil
}

func (b *workbookBuilder) setRow(sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return b.f.SetSheetRow(sheet, cell, &values)
}

func methodLabel(roundBefore bool) string {
	if roundBefore {
		return methodRounded
	}
	return methodUnrounded
}

// pointsValue shows whole numbers without a fraction.
func pointsValue(v float64) any {
	if v == math.Trunc(v) {
		return int(v)
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var sheetNameReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// sanitizeSheetName replaces characters Excel rejects in sheet names.
func sanitizeSheetName(s string) string {
	s = strings.Trim(sheetNameReplacer.Replace(s), "'")
	if strings.TrimSpace(s) == "" {
		return "Arkusz"
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func uniqueSheetName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	for i := 2; ; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		cand := truncateRunes(name, maxSheetNameLen-len([]rune(suffix))) + suffix
		if !used[cand] {
			return cand
		}
	}
}
