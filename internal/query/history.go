package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gradecli/internal/archive"
	"gradecli/internal/sheets"
	"gradecli/pkg/contracts/domain"
)

// percentFractionMax is the largest stored percent still read as a fraction.
// Older documents stored 0..1, newer ones may carry 0..100.
const percentFractionMax = 1.0001

// StudentHistory collects every row, across all documents, whose name cell
// contains pattern (case-insensitive, literal). Documents are visited oldest
// first.
func (idx *Index) StudentHistory(pattern string) []domain.HistoryRow {
	needle := strings.ToLower(strings.TrimSpace(pattern))
	if needle == "" {
		return nil
	}

	var out []domain.HistoryRow
	for i := len(idx.records) - 1; i >= 0; i-- {
		rec := idx.records[i]
		doc := rec.Document
		if len(doc.Columns) == 0 || len(doc.Rows) == 0 {
			continue
		}
		roles := sheets.ResolveColumns(doc.Columns)
		if roles.Name < 0 {
			continue
		}
		for _, row := range doc.Rows {
			name := cellAt(row, roles.Name)
			if !strings.Contains(strings.ToLower(name), needle) {
				continue
			}
			h := baseRow(rec, name)
			h.Title = doc.Title
			if roles.Points >= 0 {
				h.Points = numberText(cellValue(row, roles.Points))
			}
			if roles.Grade >= 0 {
				h.Grade = cellAt(row, roles.Grade)
			}
			if roles.Percent >= 0 {
				h.Percent, h.PercentDisplay = historyPercent(cellValue(row, roles.Percent))
			}
			out = append(out, h)
		}
	}
	return out
}

// StudentOverview lists, newest document first, the rows whose canonical
// name column contains text. Columns are matched by exact alias only and
// percents are reported as stored. It returns false when nothing matches.
func (idx *Index) StudentOverview(text string) ([]domain.HistoryRow, bool) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil, false
	}

	var out []domain.HistoryRow
	for _, rec := range idx.records {
		doc := rec.Document
		if len(doc.Columns) == 0 || len(doc.Rows) == 0 {
			continue
		}
		nameCol, pointsCol, percentCol, gradeCol := -1, -1, -1, -1
		for i, c := range doc.Columns {
			switch sheets.CanonicalName(c) {
			case domain.ColumnName:
				if nameCol < 0 {
					nameCol = i
				}
			case domain.ColumnPoints:
				if pointsCol < 0 {
					pointsCol = i
				}
			case domain.ColumnPercent:
				if percentCol < 0 {
					percentCol = i
				}
			case domain.ColumnGrade:
				if gradeCol < 0 {
					gradeCol = i
				}
			}
		}
		if nameCol < 0 {
			continue
		}

		title := doc.Title
		if title == "" {
			title = strings.TrimSuffix(rec.ID, ".json")
		}
		for _, row := range doc.Rows {
			name := cellAt(row, nameCol)
			if !strings.Contains(strings.ToLower(name), needle) {
				continue
			}
			h := baseRow(rec, name)
			h.Title = title
			if pointsCol >= 0 {
				h.Points = numberText(cellValue(row, pointsCol))
			}
			if gradeCol >= 0 {
				h.Grade = cellAt(row, gradeCol)
			}
			if percentCol >= 0 {
				if v, ok := cellNumber(cellValue(row, percentCol)); ok {
					h.Percent = &v
					h.PercentDisplay = strconv.FormatFloat(v, 'f', -1, 64)
				}
			}
			out = append(out, h)
		}
	}
	return out, len(out) > 0
}

func baseRow(rec archive.Record, name string) domain.HistoryRow {
	return domain.HistoryRow{
		Student:    name,
		Date:       DisplayDate(rec.Document.Created),
		Context:    rec.Document.Context,
		ClassName:  metaString(rec.Document.Meta, domain.MetaClassName),
		DocumentID: rec.ID,
	}
}

// historyPercent rescales fractions to 0..100 and renders integral values
// without decimals, others with two decimals and a comma.
func historyPercent(v any) (*float64, string) {
	if v == nil {
		return nil, ""
	}
	p, ok := cellNumber(v)
	if !ok {
		return nil, CellText(v)
	}
	if p >= 0 && p <= percentFractionMax {
		p *= 100
	}
	if p == math.Trunc(p) {
		return &p, strconv.FormatFloat(p, 'f', 0, 64)
	}
	return &p, strings.Replace(fmt.Sprintf("%.2f", p), ".", ",", 1)
}

// numberText renders a points cell: numbers with a comma separator, other
// values as text.
func numberText(v any) string {
	if f, ok := v.(float64); ok {
		return strings.Replace(strconv.FormatFloat(f, 'f', -1, 64), ".", ",", 1)
	}
	return CellText(v)
}

func cellValue(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func cellAt(row []any, i int) string {
	return CellText(cellValue(row, i))
}
