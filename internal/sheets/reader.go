package sheets

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	apperrors "gradecli/internal/errors"
)

// Supported input extensions.
const (
	ExtXLSX = ".xlsx"
	ExtXLSM = ".xlsm"
	ExtXLS  = ".xls"
	ExtODS  = ".ods"
	ExtCSV  = ".csv"
)

// Limits for legacy workbooks: cells read per sheet and columns per row
// (BIFF8 has 256 columns).
const (
	xlsMaxCells = 100000
	xlsMaxCols  = 256
)

// RawSheet is a sheet exactly as read: rows of trimmed cell text.
type RawSheet struct {
	Name string
	Rows [][]string
}

// Workbook is an ordered set of sheets read from one input file.
type Workbook struct {
	Path   string
	Format string
	Sheets []RawSheet
}

// Sheet returns the sheet with the given name.
func (w *Workbook) Sheet(name string) (RawSheet, bool) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return RawSheet{}, false
}

// SupportedExtension reports whether the file extension can be read.
func SupportedExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtXLSX, ExtXLSM, ExtXLS, ExtODS, ExtCSV:
		return true
	}
	return false
}

// ReadWorkbook reads every sheet of a spreadsheet file, dispatching on the
// file extension.
func ReadWorkbook(path string) (*Workbook, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		sheets []RawSheet
		err    error
	)
	switch ext {
	case ExtXLSX, ExtXLSM:
		sheets, err = readXLSX(path)
	case ExtXLS:
		sheets, err = readXLS(path)
	case ExtODS:
		sheets, err = readODS(path)
	case ExtCSV:
		sheets, err = readCSV(path)
	default:
		return nil, apperrors.NewFormatError(fmt.Sprintf("unsupported file type %q", ext), nil).
			WithContext("path", path)
	}
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, apperrors.NewFormatError("workbook contains no sheets", nil).WithContext("path", path)
	}

	return &Workbook{Path: path, Format: strings.TrimPrefix(ext, "."), Sheets: sheets}, nil
}

func readXLSX(path string) ([]RawSheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewFormatError("failed to open xlsx workbook", err).WithContext("path", path)
	}
	defer f.Close()

	var out []RawSheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", name), err)
		}
		out = append(out, RawSheet{Name: name, Rows: trimCells(rows)})
	}
	return out, nil
}

func readXLS(path string) ([]RawSheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read xls file", err).WithContext("path", path)
	}
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, apperrors.NewFormatError("failed to open xls workbook", err).WithContext("path", path)
	}
	if wb == nil {
		return nil, apperrors.NewFormatError("xls file has no workbook stream", nil).WithContext("path", path)
	}

	var out []RawSheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		var rows [][]string
		cells := 0
		for r := 0; r <= int(ws.MaxRow) && cells < xlsMaxCells; r++ {
			row := xlsRow(ws, r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			// ROW records are optional, so LastCol cannot be trusted.
			line := make([]string, 0, row.LastCol())
			for c := 0; c < xlsMaxCols; c++ {
				line = append(line, row.Col(c))
			}
			for len(line) > 0 && line[len(line)-1] == "" {
				line = line[:len(line)-1]
			}
			cells += len(line)
			rows = append(rows, line)
		}
		out = append(out, RawSheet{Name: ws.Name, Rows: trimCells(rows)})
	}
	return out, nil
}

// xlsRow returns row r of the sheet or nil when the row holds no cells.
func xlsRow(ws *xls.WorkSheet, r int) (row *xls.Row) {
	defer func() {
		// WorkSheet.Row dereferences missing rows.
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(r)
}

func readCSV(path string) ([]RawSheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read csv file", err).WithContext("path", path)
	}
	rows, err := parseCSV(data)
	if err != nil {
		return nil, apperrors.NewFormatError("failed to parse csv", err).WithContext("path", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" {
		name = "CSV"
	}
	return []RawSheet{{Name: name, Rows: trimCells(rows)}}, nil
}

func parseCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas, which is how spreadsheet programs export CSV in Polish locales.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	if bytes.Count(line, []byte("\t")) > bytes.Count(line, []byte(",")) {
		return '\t'
	}
	return ','
}

// trimCells trims surrounding whitespace from every cell and drops trailing
// rows that hold no text.
func trimCells(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		line := make([]string, len(row))
		for j, c := range row {
			line[j] = strings.TrimSpace(c)
		}
		out[i] = line
	}
	for len(out) > 0 && rowEmpty(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// ParseNumber parses a cell as a finite number, accepting a comma decimal
// separator and thousands spaces.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
