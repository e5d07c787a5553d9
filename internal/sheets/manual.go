package sheets

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "gradecli/internal/errors"
)

// ManualSheetName is the sheet that holds hand-entered results.
const ManualSheetName = "Wyniki"

// ParseManual reads one student per line in the form "name;points". A TAB
// or the last space also separates the name from the points, and points
// may use a decimal comma. Blank lines are skipped. The first bad line
// fails the whole list and is reported with its 1-based line number.
func ParseManual(r io.Reader) (RawSheet, error) {
	rows := [][]string{{"Nazwisko", "Ilość punktów"}}

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		name, pts, ok := splitManualLine(line)
		if !ok {
			return RawSheet{}, manualLineError(lineNo, "cannot find the points, use: name;points")
		}
		if name == "" {
			return RawSheet{}, manualLineError(lineNo, "missing student name")
		}
		v, ok := ParseNumber(pts)
		if !ok {
			return RawSheet{}, manualLineError(lineNo, fmt.Sprintf("points %q are not a number", pts))
		}
		rows = append(rows, []string{name, strconv.FormatFloat(v, 'f', -1, 64)})
	}
	if err := sc.Err(); err != nil {
		return RawSheet{}, apperrors.NewStorageError("failed to read manual input", err)
	}
	if len(rows) == 1 {
		return RawSheet{}, apperrors.NewValidationError("input", "no students entered")
	}
	return RawSheet{Name: ManualSheetName, Rows: rows}, nil
}

func splitManualLine(line string) (name, points string, ok bool) {
	for _, sep := range []string{";", "\t", " "} {
		if i := strings.LastIndex(line, sep); i >= 0 {
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+len(sep):]), true
		}
	}
	return "", "", false
}

func manualLineError(lineNo int, msg string) *apperrors.AppError {
	return apperrors.NewParsingError(fmt.Sprintf("line %d: %s", lineNo, msg), nil).WithContext("line", lineNo)
}
