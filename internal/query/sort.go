package query

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	apperrors "gradecli/internal/errors"
	"gradecli/pkg/contracts/domain"
)

// sortKey is a numeric value when the text parses as a number (comma or dot
// decimal separator), otherwise text compared case-insensitively.
type sortKey struct {
	numeric bool
	num     float64
	text    string
}

func keyOf(s string) sortKey {
	t := strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(strings.ReplaceAll(t, ",", "."), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return sortKey{numeric: true, num: v}
	}
	return sortKey{text: s}
}

// Numbers sort before text. Text uses Polish collation ignoring case so "Łódź"
// sorts after "Lublin" and before "Malbork".
func compareKeys(c *collate.Collator, a, b sortKey) int {
	switch {
	case a.numeric && b.numeric:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case a.numeric:
		return -1
	case b.numeric:
		return 1
	}
	return c.CompareString(a.text, b.text)
}

// SortBy returns a sorted copy of items ordered by the text key. Equal keys
// keep their input order in both directions. The input is never modified.
func SortBy[T any](items []T, key func(T) string, desc bool) []T {
	out := make([]T, len(items))
	copy(out, items)

	keys := make([]sortKey, len(out))
	for i, it := range out {
		keys[i] = keyOf(key(it))
	}
	perm := make([]int, len(out))
	for i := range perm {
		perm[i] = i
	}

	c := collate.New(language.Polish, collate.IgnoreCase)
	sort.SliceStable(perm, func(i, j int) bool {
		cmp := compareKeys(c, keys[perm[i]], keys[perm[j]])
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})

	sorted := make([]T, len(out))
	for i, p := range perm {
		sorted[i] = out[p]
	}
	return sorted
}

// Sort orders archive summaries by a listing column.
func Sort(summaries []domain.DocumentSummary, column string, desc bool) []domain.DocumentSummary {
	return SortBy(summaries, func(s domain.DocumentSummary) string { return s.Field(column) }, desc)
}

// SortHistory orders history rows by one of their columns.
func SortHistory(rows []domain.HistoryRow, column string, desc bool) []domain.HistoryRow {
	return SortBy(rows, func(r domain.HistoryRow) string { return r.Field(column) }, desc)
}

// Sortable columns, aliases included, as accepted by Sort and SortHistory.
var (
	SummaryColumns = []string{"id", "date", "created", "context", "class", "class_name",
		"subject", "school", "title", "school_year", "summary", "short_summary"}
	HistoryColumns = []string{"student", "name", "date", "created", "context", "class",
		"class_name", "title", "points", "percent", "grade"}
)

// CheckSortColumn returns a ValidationError when column is not one of allowed.
func CheckSortColumn(column string, allowed []string) error {
	for _, c := range allowed {
		if c == column {
			return nil
		}
	}
	return apperrors.NewValidationError("sort", fmt.Sprintf("unknown column %q, want one of %s",
		column, strings.Join(allowed, ", ")))
}
