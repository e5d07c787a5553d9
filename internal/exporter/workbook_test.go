package exporter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gradecli/internal/aggregate"
	"gradecli/internal/shared/testutil"
	"gradecli/pkg/contracts/domain"
)

func scoredFixture(sheet string, rows ...domain.ScoredRow) *domain.ScoredTable {
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return &domain.ScoredTable{
		Sheet: sheet,
		Columns: []string{
			domain.ColumnRank, domain.ColumnName, domain.ColumnPoints, domain.ColumnPercent, domain.ColumnGrade, "Uwagi",
		},
		Rows: rows,
	}
}

func openResult(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func cellValue(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return v
}

func TestWorkbookExporter_Write(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	policy := domain.GradingPolicy{MaxPoints: 60, Scale: domain.DefaultScale()}

	tables := []*domain.ScoredTable{
		scoredFixture("3a",
			domain.ScoredRow{Name: "Jan", Points: 54, Percent: 0.9, Grade: "5 (bardzo dobry)", Passthrough: []string{"ok"}},
			domain.ScoredRow{Name: "Ala", Points: 30, Percent: 0.5, Grade: "3 (dostateczny)", Passthrough: []string{""}},
		),
		scoredFixture("3b",
			domain.ScoredRow{Name: "Ola", Points: 60, Percent: 1, Grade: "6 (celujący)", Passthrough: []string{""}},
		),
	}
	agg := aggregate.Aggregate(tables, domain.WeightProfile{"3b": 2}, true)

	path := filepath.Join(t.TempDir(), "out", "klasa_przetworzone.xlsx")
	require.NoError(t, NewWorkbookExporter(logger).Write(path, tables, agg, policy))

	_, err := os.Stat(path + ".tmp.xlsx")
	assert.True(t, os.IsNotExist(err), "temporary file removed")

	f := openResult(t, path)
	assert.Equal(t, []string{"3a", "Podsumowanie – 3a", "3b", "Podsumowanie – 3b", GlobalSummarySheet}, f.GetSheetList())

	t.Run("scored sheet", func(t *testing.T) {
		assert.Equal(t, "Lp.", cellValue(t, f, "3a", "A1"))
		assert.Equal(t, "Uwagi", cellValue(t, f, "3a", "F1"))
		assert.Equal(t, "1", cellValue(t, f, "3a", "A2"))
		assert.Equal(t, "Jan", cellValue(t, f, "3a", "B2"))
		assert.Equal(t, "54", cellValue(t, f, "3a", "C2"))
		assert.Equal(t, "0.9", cellValue(t, f, "3a", "D2"))
		assert.Equal(t, "ok", cellValue(t, f, "3a", "F2"))

		assert.Equal(t, "Informacje o ocenianiu:", cellValue(t, f, "3a", "A5"))
		assert.Equal(t, "Maksymalna liczba punktów (testu): 60", cellValue(t, f, "3a", "A6"))
		assert.Equal(t, "Metoda oceniania: "+methodUnrounded, cellValue(t, f, "3a", "A7"))
		assert.Equal(t, "Kryteria ocen (progi procentowe):", cellValue(t, f, "3a", "A8"))
		assert.Equal(t, `(97, 100, "6 (celujący)")`, cellValue(t, f, "3a", "A9"))
	})

	t.Run("sheet summary", func(t *testing.T) {
		s := "Podsumowanie – 3a"
		assert.Equal(t, "Ocena", cellValue(t, f, s, "A1"))
		assert.Equal(t, "Liczba uczniów", cellValue(t, f, s, "B1"))
		assert.Equal(t, "Statystyka", cellValue(t, f, s, "D1"))
		assert.Equal(t, "6", cellValue(t, f, s, "A2"))
		assert.Equal(t, "0", cellValue(t, f, s, "B2"))
		assert.Equal(t, "1", cellValue(t, f, s, "B3"))
		assert.Equal(t, "1", cellValue(t, f, s, "B5"))

		assert.Equal(t, "Średnia punktów", cellValue(t, f, s, "D2"))
		assert.Equal(t, "42", cellValue(t, f, s, "E2"))
		assert.Equal(t, "30", cellValue(t, f, s, "E4"))
		assert.Equal(t, "54", cellValue(t, f, s, "E5"))
		assert.Equal(t, "60", cellValue(t, f, s, "E6"))
		assert.Equal(t, "2", cellValue(t, f, s, "E7"))
		assert.Equal(t, methodUnrounded, cellValue(t, f, s, "E8"))
		assert.Empty(t, cellValue(t, f, s, "D9"), "no weighted mean on sheet summaries")

		assert.Equal(t, "Kryteria ocen (progi procentowe):", cellValue(t, f, s, "A11"))
		assert.Equal(t, "Od (%)", cellValue(t, f, s, "A12"))
		assert.Equal(t, "97", cellValue(t, f, s, "A13"))
		assert.Equal(t, "6 (celujący)", cellValue(t, f, s, "C13"))
	})

	t.Run("global summary", func(t *testing.T) {
		s := GlobalSummarySheet
		assert.Equal(t, "Łącznie uczniów", cellValue(t, f, s, "B1"))
		assert.Equal(t, "Statystyka (globalnie)", cellValue(t, f, s, "D1"))
		assert.Equal(t, "1", cellValue(t, f, s, "B2"))
		assert.Equal(t, "Łącznie uczniów", cellValue(t, f, s, "D7"))
		assert.Equal(t, "3", cellValue(t, f, s, "E7"))
		assert.Equal(t, "Średnia punktów (ważona)", cellValue(t, f, s, "D9"))
		// (42*1 + 60*2) / 3
		assert.Equal(t, "54", cellValue(t, f, s, "E9"))
		assert.Equal(t, "Kryteria ocen (progi procentowe):", cellValue(t, f, s, "A12"))
	})
}

func TestWorkbookExporter_EmptyGlobal(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	policy := domain.GradingPolicy{MaxPoints: 10, Scale: domain.DefaultScale(), RoundBeforeGrading: true}
	tables := []*domain.ScoredTable{scoredFixture("pusty")}

	path := filepath.Join(t.TempDir(), "pusty_przetworzone.xlsx")
	require.NoError(t, NewWorkbookExporter(logger).Write(path, tables, aggregate.Aggregate(tables, nil, false), policy))

	f := openResult(t, path)
	assert.Equal(t, "Ocena", cellValue(t, f, GlobalSummarySheet, "A1"))
	assert.Empty(t, cellValue(t, f, GlobalSummarySheet, "A2"))
	assert.Equal(t, "Metoda oceniania: "+methodRounded, cellValue(t, f, "pusty", "A5"))
}

func TestResultPath(t *testing.T) {
	in := filepath.Join("dane", "klasa 3a.xlsx")
	assert.Equal(t, filepath.Join("dane", "klasa 3a_przetworzone.xlsx"), ResultPath(in, "", "_przetworzone.xlsx"))
	assert.Equal(t, filepath.Join("wyniki", "klasa 3a_przetworzone.xlsx"), ResultPath(in, "wyniki", "_przetworzone.xlsx"))
}

func TestSheetNames(t *testing.T) {
	long := "Podsumowanie – " + strings.Repeat("ą", 40)
	got := truncateRunes(long, maxSheetNameLen)
	assert.Len(t, []rune(got), maxSheetNameLen)

	assert.Equal(t, "a_b_c", sanitizeSheetName("a/b?c"))
	assert.Equal(t, "Arkusz", sanitizeSheetName("''"))

	used := map[string]bool{"Podsumowanie": true, "Podsumowanie (2)": true}
	assert.Equal(t, "Podsumowanie (3)", uniqueSheetName("Podsumowanie", used))
	assert.Equal(t, "Nowy", uniqueSheetName("Nowy", used))

	full := strings.Repeat("x", maxSheetNameLen)
	dup := uniqueSheetName(full, map[string]bool{full: true})
	assert.Equal(t, strings.Repeat("x", maxSheetNameLen-4)+" (2)", dup)
}
