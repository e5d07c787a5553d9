package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/operations"
	"gradecli/internal/query"
)

// table writes aligned columns. Cells may hold Polish letters, so widths
// are counted in runes.
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, headers ...string) *table {
	t := &table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
	t.row(headers...)
	return t
}

var cellReplacer = strings.NewReplacer("\t", " ", "\n", " ")

func (t *table) row(cells ...string) {
	clean := make([]string, len(cells))
	for i, c := range cells {
		clean[i] = cellReplacer.Replace(c)
	}
	fmt.Fprintln(t.tw, strings.Join(clean, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printKeyValue(w io.Writer, key, value string) {
	fmt.Fprintf(w, "  %-22s %s\n", key+":", value)
}

// printError prints err with a hint derived from its type.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	switch {
	case apperrors.IsType(err, apperrors.ErrTypeSchema):
		fmt.Fprintln(w, "Hint: the sheet needs a name column (e.g. \"Nazwisko\") and a points column (e.g. \"Ilość punktów\").")
	case apperrors.IsType(err, apperrors.ErrTypeConfig):
		fmt.Fprintln(w, "Hint: check the config file and GRADECLI_* environment variables.")
	case operations.GetErrorType(err) == operations.ErrorTypeCancellation:
		fmt.Fprintln(w, "Interrupted.")
	}
}

func percentText(p float64) string {
	return query.CellText(math.Round(p*1000)/10) + "%"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
