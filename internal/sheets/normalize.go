package sheets

import (
	"fmt"
	"strings"

	apperrors "gradecli/internal/errors"
	"gradecli/pkg/contracts/domain"
)

// headerKeywords mark a first row as a header when any of them appears in
// the lowercase join of its non-empty cells.
var headerKeywords = []string{
	"nazwisko", "imię", "imie", "ilość punktów", "ilosc punktow", "punkty", "ocena", "procent",
}

// LooksLikeHeader reports whether a row reads as column titles.
func LooksLikeHeader(row []string) bool {
	parts := make([]string, 0, len(row))
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, strings.ToLower(c))
		}
	}
	joined := strings.Join(parts, " ")
	for _, kw := range headerKeywords {
		if strings.Contains(joined, kw) {
			return true
		}
	}
	return false
}

// positionalColumns returns Kol1..KolN.
func positionalColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("Kol%d", i+1)
	}
	return cols
}

// Normalize turns a raw sheet into a canonical table.
//
// Row 0 is consumed as the header when it looks like one; otherwise columns
// are named Kol1..KolN. If the header does not provide both a name and a
// points column, every column is renamed positionally and the first two are
// taken as name and points. Only a sheet with no columns at all is an error.
func Normalize(raw RawSheet) (*domain.CanonicalTable, error) {
	width := 0
	for _, r := range raw.Rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == 0 {
		return nil, apperrors.NewFormatError("sheet has no usable columns", nil).
			WithContext("sheet", raw.Name)
	}

	rows := make([][]string, 0, len(raw.Rows))
	for _, r := range raw.Rows {
		line := make([]string, width)
		copy(line, r)
		rows = append(rows, line)
	}

	var columns []string
	if LooksLikeHeader(rows[0]) {
		columns = make([]string, width)
		for i, c := range rows[0] {
			columns[i] = strings.TrimSpace(c)
			if columns[i] == "" {
				columns[i] = fmt.Sprintf("Kol%d", i+1)
			}
		}
		rows = rows[1:]
	} else {
		columns = positionalColumns(width)
	}

	table := &domain.CanonicalTable{Sheet: raw.Name}
	if hasRole(columns, RoleName) && hasRole(columns, RolePoints) {
		table.Columns, table.Rows = aliasColumns(columns, rows)
		return table, nil
	}

	columns = positionalColumns(width)
	columns[0] = domain.ColumnName
	if width > 1 {
		columns[1] = domain.ColumnPoints
	}
	table.Columns, table.Rows = columns, rows
	return table, nil
}

func hasRole(columns []string, role Role) bool {
	for _, c := range columns {
		if AliasRole(c) == role {
			return true
		}
	}
	return false
}

// aliasColumns renames aliased headers to their canonical names and keeps
// only the first of any duplicated column.
func aliasColumns(columns []string, rows [][]string) ([]string, [][]string) {
	seen := make(map[string]bool, len(columns))
	keep := make([]int, 0, len(columns))
	out := make([]string, 0, len(columns))
	for i, c := range columns {
		name := CanonicalName(c)
		if seen[name] {
			continue
		}
		seen[name] = true
		keep = append(keep, i)
		out = append(out, name)
	}
	if len(keep) == len(columns) {
		return out, rows
	}

	trimmed := make([][]string, len(rows))
	for r, row := range rows {
		line := make([]string, len(keep))
		for j, i := range keep {
			line[j] = row[i]
		}
		trimmed[r] = line
	}
	return out, trimmed
}
