package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradecli/internal/archive"
	apperrors "gradecli/internal/errors"
	"gradecli/internal/shared/testutil"
	"gradecli/pkg/contracts/domain"
)

func mtime(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

// testListing is newest first. The last document has no name column.
func testListing() *archive.Listing {
	return &archive.Listing{
		Corrupt: 1,
		Records: []archive.Record{
			{
				ID:      "20240901_100000_Sprawdzian.json",
				ModTime: mtime("2024-09-01"),
				Document: &domain.ArchiveDocument{
					Context: "SP1",
					Title:   "Sprawdzian",
					Created: "2024-09-01T10:00:00",
					Meta: map[string]any{
						domain.MetaSubject:      "Historia",
						domain.MetaClassName:    "6A",
						domain.MetaSchool:       "SP Górzno",
						domain.MetaShortSummary: "Uczniów: 2",
					},
					Columns: []string{"Lp.", "Nazwisko", "Ilość punktów", "Procent", "Ocena"},
					Rows: [][]any{
						{1.0, "Jan Kowalski", 58.0, 0.9666666666666667, "5 (bardzo dobry)"},
						{2.0, "Ala Nowak", 30.0, 0.5, "3 (dostateczny)"},
					},
				},
			},
			{
				ID:      "20240831_090000_Kartkowka.json",
				ModTime: mtime("2024-08-31"),
				Document: &domain.ArchiveDocument{
					Context: "SP1",
					Title:   "Kartkówka",
					Created: "2024-08-31T09:00:00",
					Meta:    map[string]any{domain.MetaSubject: "WOS", domain.MetaClassName: "7B"},
					Columns: []string{"Imię i nazwisko", "Punkty", "Procent %", "Ocena końcowa"},
					Rows: [][]any{
						{"Jan Kowalski", 20.5, 82.0, "4"},
						{nil, 1.0, 0.1, "1"},
					},
				},
			},
			{
				ID:      "notes.json",
				ModTime: mtime("2023-10-05"),
				Document: &domain.ArchiveDocument{
					Title:   "notes",
					Meta:    map[string]any{},
					Columns: []string{"X"},
					Rows:    [][]any{{"Jan Kowalski"}},
				},
			},
		},
	}
}

func TestBuildIndex(t *testing.T) {
	idx := BuildIndex(testListing())

	require.Equal(t, 3, idx.Len())
	assert.Equal(t, 1, idx.Corrupt)

	first := idx.Summaries[0]
	assert.Equal(t, "2024-09-01 10:00", first.Created)
	assert.Equal(t, "Historia", first.Subject)
	assert.Equal(t, "6A", first.ClassName)
	assert.Equal(t, "SP Górzno", first.School)
	assert.Equal(t, "Jan Kowalski Ala Nowak", first.Students)
	assert.Equal(t, "2024/2025", first.SchoolYear)
	assert.Equal(t, "Uczniów: 2", first.Summary)

	assert.Equal(t, "Jan Kowalski", idx.Summaries[1].Students)
	assert.Equal(t, "2023/2024", idx.Summaries[1].SchoolYear)

	assert.Empty(t, idx.Summaries[2].Students)
	assert.Equal(t, "2023/2024", idx.Summaries[2].SchoolYear)

	s, ok := idx.Summary("notes.json")
	require.True(t, ok)
	assert.Equal(t, "notes", s.Title)

	assert.Equal(t, 0, BuildIndex(nil).Len())
}

func TestSchoolYear(t *testing.T) {
	tests := []struct {
		name    string
		created string
		mod     time.Time
		want    string
	}{
		{"last day of August", "2024-08-31T23:59:59", time.Time{}, "2023/2024"},
		{"first of September", "2024-09-01T00:00:00", time.Time{}, "2024/2025"},
		{"date only", "2025-01-10", time.Time{}, "2024/2025"},
		{"missing created uses mtime", "", mtime("2025-01-10"), "2024/2025"},
		{"non-date created uses mtime", "yesterday", mtime("2024-10-01"), "2024/2025"},
		{"malformed year uses mtime", "20xx-01-01T00:00:00", mtime("2024-10-01"), "2024/2025"},
		{"malformed month uses mtime", "2024-xx-01T10:00:00", mtime("2024-10-05"), "2024/2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SchoolYear(tt.created, tt.mod))
		})
	}
}

func TestDisplayDate(t *testing.T) {
	assert.Equal(t, "2024-03-05 14:07", DisplayDate("2024-03-05T14:07:09"))
	assert.Equal(t, "2024-03-05", DisplayDate("2024-03-05"))
	assert.Equal(t, "", DisplayDate(""))
}

func TestFilter(t *testing.T) {
	summaries := BuildIndex(testListing()).Summaries

	ids := func(in []domain.DocumentSummary) []string {
		var out []string
		for _, s := range in {
			out = append(out, s.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter keeps all", Filter{}, ids(summaries)},
		{"student name", Filter{Text: "nowak"}, []string{summaries[0].ID}},
		{"inflected name retried without last char", Filter{Text: "Kowalskie"}, []string{summaries[0].ID, summaries[1].ID}},
		{"short text is not retried", Filter{Text: "wosx"}, nil},
		{"school", Filter{Text: "górzno"}, []string{summaries[0].ID}},
		{"date", Filter{Text: "2024-08-31"}, []string{summaries[1].ID}},
		{"subject", Filter{Subject: "WOS"}, []string{summaries[1].ID}},
		{"school year", Filter{SchoolYear: "2023/2024"}, []string{summaries[1].ID, summaries[2].ID}},
		{"all years", Filter{SchoolYear: AllYears}, ids(summaries)},
		{"combined", Filter{Text: "kowalski", SchoolYear: "2024/2025"}, []string{summaries[0].ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter.Apply(summaries)))
		})
	}
}

func TestFilter_RetryCountsCharacters(t *testing.T) {
	summaries := []domain.DocumentSummary{{ID: "a", Title: "Test żół kartkówka"}}

	assert.Empty(t, Filter{Text: "żółw"}.Apply(summaries), "four letters are not retried")
	assert.Len(t, Filter{Text: "żółwi"}.Apply(summaries), 0)
	assert.Len(t, Filter{Text: "kartkówki"}.Apply(summaries), 1)
}

func TestFacets(t *testing.T) {
	summaries := BuildIndex(testListing()).Summaries

	assert.Equal(t, []string{"Historia", "WOS"}, Subjects(summaries))
	assert.Equal(t, []string{"2024/2025", "2023/2024"}, SchoolYears(summaries))
}

func TestSyncSubjectTabs(t *testing.T) {
	tabs := &domain.SubjectTabs{Tabs: map[string]domain.SubjectTab{
		"WOS": {Label: "Wiedza o społeczeństwie", Visible: false},
	}}

	assert.True(t, SyncSubjectTabs(tabs, []string{"Historia", "WOS"}))
	assert.Equal(t, domain.SubjectTab{Label: "Historia", Visible: true}, tabs.Tabs["Historia"])
	assert.Equal(t, domain.SubjectTab{Label: "Wiedza o społeczeństwie", Visible: false}, tabs.Tabs["WOS"])
	assert.False(t, SyncSubjectTabs(tabs, []string{"Historia"}))

	assert.Equal(t, []string{"Historia"}, VisibleSubjects(tabs, []string{"Historia", "WOS"}))

	key, ok := tabs.SubjectForLabel("Wiedza o społeczeństwie")
	require.True(t, ok)
	assert.Equal(t, "WOS", key)

	empty := &domain.SubjectTabs{}
	assert.True(t, SyncSubjectTabs(empty, []string{"Fizyka"}))
	assert.Len(t, empty.Tabs, 1)
}

func TestSortBy(t *testing.T) {
	in := []string{"b", "A", "10", "9", "2,5"}
	identity := func(s string) string { return s }

	assert.Equal(t, []string{"2,5", "9", "10", "A", "b"}, SortBy(in, identity, false))
	assert.Equal(t, []string{"b", "A", "10", "9", "2,5"}, SortBy(in, identity, true))
	assert.Equal(t, []string{"b", "A", "10", "9", "2,5"}, in, "input must not be reordered")

	polish := []string{"Malbork", "Łódź", "Lublin", "lato"}
	assert.Equal(t, []string{"lato", "Lublin", "Łódź", "Malbork"}, SortBy(polish, identity, false))
}

func TestSortBy_NonFiniteIsText(t *testing.T) {
	in := []string{"Inf", "NaN", "5", "infinity", "-Inf", "1"}
	identity := func(s string) string { return s }

	got := SortBy(in, identity, false)
	assert.Equal(t, []string{"1", "5"}, got[:2])
	assert.ElementsMatch(t, []string{"Inf", "NaN", "infinity", "-Inf"}, got[2:])
	assert.False(t, keyOf("NaN").numeric)
	assert.False(t, keyOf("-inf").numeric)
	assert.True(t, keyOf("2,5").numeric)
}

func TestCheckSortColumn(t *testing.T) {
	for _, c := range SummaryColumns {
		assert.NoError(t, CheckSortColumn(c, SummaryColumns), c)
		assert.NotEqual(t, "", domain.DocumentSummary{
			ID: "x", Created: "x", Context: "x", ClassName: "x", Subject: "x",
			School: "x", Title: "x", SchoolYear: "x", Summary: "x",
		}.Field(c), c)
	}
	for _, c := range HistoryColumns {
		assert.NoError(t, CheckSortColumn(c, HistoryColumns), c)
		assert.NotEqual(t, "", domain.HistoryRow{
			Student: "x", Date: "x", Context: "x", ClassName: "x", Title: "x",
			Points: "x", PercentDisplay: "x", Grade: "x",
		}.Field(c), c)
	}

	err := CheckSortColumn("ocena", SummaryColumns)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestSortBy_Stable(t *testing.T) {
	type item struct{ key, id string }
	in := []item{{"a", "1"}, {"b", "2"}, {"a", "3"}}
	key := func(i item) string { return i.key }

	asc := SortBy(in, key, false)
	assert.Equal(t, []item{{"a", "1"}, {"a", "3"}, {"b", "2"}}, asc)

	desc := SortBy(in, key, true)
	assert.Equal(t, []item{{"b", "2"}, {"a", "1"}, {"a", "3"}}, desc)
}

func TestSort_Summaries(t *testing.T) {
	summaries := BuildIndex(testListing()).Summaries

	byTitle := Sort(summaries, "title", false)
	assert.Equal(t, []string{"Kartkówka", "notes", "Sprawdzian"},
		[]string{byTitle[0].Title, byTitle[1].Title, byTitle[2].Title})

	byDate := Sort(summaries, "date", true)
	assert.Equal(t, summaries[0].ID, byDate[0].ID)
}

func TestStudentHistory(t *testing.T) {
	idx := BuildIndex(testListing())

	rows := idx.StudentHistory("KOWALSKI")
	require.Len(t, rows, 2)

	older := rows[0]
	assert.Equal(t, "Jan Kowalski", older.Student)
	assert.Equal(t, "2024-08-31 09:00", older.Date)
	assert.Equal(t, "7B", older.ClassName)
	assert.Equal(t, "Kartkówka", older.Title)
	assert.Equal(t, "20,5", older.Points)
	assert.Equal(t, "82", older.PercentDisplay)
	require.NotNil(t, older.Percent)
	assert.InDelta(t, 82.0, *older.Percent, 1e-9)
	assert.Equal(t, "4", older.Grade)

	newer := rows[1]
	assert.Equal(t, "Sprawdzian", newer.Title)
	assert.Equal(t, "58", newer.Points)
	assert.Equal(t, "96,67", newer.PercentDisplay)
	assert.Equal(t, "5 (bardzo dobry)", newer.Grade)
	assert.Equal(t, "20240901_100000_Sprawdzian.json", newer.DocumentID)

	assert.Empty(t, idx.StudentHistory("Zenon"))
	assert.Empty(t, idx.StudentHistory("  "))
	assert.Empty(t, idx.StudentHistory("kowal.*"), "pattern is literal")
}

func TestHistoryPercent(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{0.5, "50"},
		{1.0, "100"},
		{1.0001, "100,01"},
		{45.5, "45,50"},
		{"0,25", "25"},
		{"n/a", "n/a"},
		{nil, ""},
	}

	for _, tt := range tests {
		_, got := historyPercent(tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestStudentOverview(t *testing.T) {
	idx := BuildIndex(testListing())

	rows, ok := idx.StudentOverview("nowak")
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ala Nowak", rows[0].Student)
	assert.Equal(t, "30", rows[0].Points)
	require.NotNil(t, rows[0].Percent)
	assert.Equal(t, 0.5, *rows[0].Percent)

	rows, ok = idx.StudentOverview("kowalski")
	require.True(t, ok)
	assert.Len(t, rows, 2, "aliased name column is matched, a document without one is not")
	assert.Equal(t, "Sprawdzian", rows[0].Title)

	_, ok = idx.StudentOverview("zenon")
	assert.False(t, ok)
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "58", CellText(58.0))
	assert.Equal(t, "2.5", CellText(2.5))
	assert.Equal(t, "", CellText(nil))
	assert.Equal(t, "x", CellText(" x "))
	assert.Equal(t, "True", CellText(true))
}

func TestCachedIndex(t *testing.T) {
	ctx := context.Background()
	logger, _ := testutil.NewTestLogger(t)
	store, err := archive.NewStore(filepath.Join(t.TempDir(), "archiwum"), logger)
	require.NoError(t, err)

	table := &domain.ScoredTable{
		Columns: []string{domain.ColumnRank, domain.ColumnName, domain.ColumnPoints, domain.ColumnPercent, domain.ColumnGrade},
		Rows:    []domain.ScoredRow{{Rank: 1, Name: "Jan Kowalski", Points: 10, Percent: 1, Grade: "6"}},
	}
	_, err = store.Write(ctx, "c", "first", table, nil)
	require.NoError(t, err)

	ci := NewCachedIndex(store, logger)
	idx, err := ci.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())

	_, err = store.Write(ctx, "c", "bypass", table, nil)
	require.NoError(t, err)
	idx, err = ci.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len(), "writes that bypass the cache are not seen")

	id, err := ci.Write(ctx, "c", "through", table, nil)
	require.NoError(t, err)
	idx, err = ci.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	doc, err := ci.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "through", doc.Title)

	require.NoError(t, ci.Delete(ctx, id))
	idx, err = ci.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
}
