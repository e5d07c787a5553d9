package grading

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/sheets"
	"gradecli/pkg/contracts/domain"
)

// computedColumns are rebuilt by the engine; input values for them are
// discarded.
var computedColumns = map[string]bool{
	domain.ColumnRank:    true,
	domain.ColumnName:    true,
	domain.ColumnPoints:  true,
	domain.ColumnPercent: true,
	domain.ColumnGrade:   true,
}

// Engine grades canonical tables. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a grading engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With(slog.String("component", "grading"))}
}

// Score grades every row of the table under the policy.
//
// Rows whose points are not numeric or whose name is empty are dropped and
// counted. Rows are ordered by points descending with ties kept in input
// order, and ranked 1..n.
func (e *Engine) Score(ctx context.Context, table *domain.CanonicalTable, policy domain.GradingPolicy) (*domain.ScoredTable, error) {
	if err := ValidatePolicy(policy); err != nil {
		return nil, err
	}

	nameIdx := table.ColumnIndex(domain.ColumnName)
	pointsIdx := table.ColumnIndex(domain.ColumnPoints)
	var missing []string
	if nameIdx < 0 {
		missing = append(missing, domain.ColumnName)
	}
	if pointsIdx < 0 {
		missing = append(missing, domain.ColumnPoints)
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaError(missing...).WithContext("sheet", table.Sheet)
	}

	var passIdx []int
	columns := []string{
		domain.ColumnRank, domain.ColumnName, domain.ColumnPoints, domain.ColumnPercent, domain.ColumnGrade,
	}
	for i, c := range table.Columns {
		if computedColumns[c] {
			continue
		}
		passIdx = append(passIdx, i)
		columns = append(columns, c)
	}

	out := &domain.ScoredTable{Sheet: table.Sheet, Columns: columns}
	for _, row := range table.Rows {
		name := strings.TrimSpace(cell(row, nameIdx))
		points, ok := sheets.ParseNumber(cell(row, pointsIdx))
		if !ok || name == "" {
			out.DroppedRows++
			continue
		}

		switch {
		case points > policy.MaxPoints:
			out.Advisories = append(out.Advisories, domain.Advisory{
				Kind: domain.AdvisoryOverMax, Name: name, Points: points, MaxPoints: policy.MaxPoints,
			})
		case points == 0:
			out.Advisories = append(out.Advisories, domain.Advisory{
				Kind: domain.AdvisoryZeroPoints, Name: name, Points: points,
			})
		}

		frac := points / policy.MaxPoints
		scored := domain.ScoredRow{
			Name:    name,
			Points:  points,
			Percent: frac,
			Grade:   GradeFromFraction(frac, policy.Scale, policy.RoundBeforeGrading),
		}
		if len(passIdx) > 0 {
			scored.Passthrough = make([]string, len(passIdx))
			for j, i := range passIdx {
				scored.Passthrough[j] = cell(row, i)
			}
		}
		out.Rows = append(out.Rows, scored)
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		return out.Rows[i].Points > out.Rows[j].Points
	})
	for i := range out.Rows {
		out.Rows[i].Rank = i + 1
	}

	e.logger.DebugContext(ctx, "sheet scored",
		slog.String("sheet", table.Sheet),
		slog.Int("rows", len(out.Rows)),
		slog.Int("dropped", out.DroppedRows),
		slog.Int("advisories", len(out.Advisories)))
	if out.DroppedRows > 0 {
		e.logger.InfoContext(ctx, "rows without points or name dropped",
			slog.String("sheet", table.Sheet),
			slog.Int("dropped", out.DroppedRows))
	}

	return out, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
