package testutil

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// SheetFixture describes one sheet of a generated test workbook.
type SheetFixture struct {
	Name string
	Rows [][]any
}

// WriteWorkbook saves an xlsx file with the given sheets into dir and
// returns its path. The first sheet replaces excelize's default sheet.
func WriteWorkbook(t *testing.T, dir, fileName string, sheets ...SheetFixture) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("new sheet %q: %v", s.Name, err)
		}
		for r, row := range s.Rows {
			for c, val := range row {
				if val == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatalf("cell name: %v", err)
				}
				if err := f.SetCellValue(s.Name, cell, val); err != nil {
					t.Fatalf("set %s!%s: %v", s.Name, cell, err)
				}
			}
		}
	}

	path := filepath.Join(dir, fileName)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

// ScoreSheet is the fixture used across packages: three students on a
// 60 point test with a Polish header row.
func ScoreSheet(name string) SheetFixture {
	return SheetFixture{
		Name: name,
		Rows: [][]any{
			{"Nazwisko", "Ilość punktów"},
			{"Jan", 61},
			{"Ala", 54},
			{"Ola", 0},
		},
	}
}
