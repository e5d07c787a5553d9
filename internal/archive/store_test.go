package archive

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/shared/testutil"
	"gradecli/pkg/contracts/domain"
)

func fixedClock(ts string) func() time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", ts, time.Local)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, _ := newLoggedStore(t, opts...)
	return s
}

func newLoggedStore(t *testing.T, opts ...Option) (*Store, *testutil.LogCapture) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	s, err := NewStore(filepath.Join(t.TempDir(), "archiwum"), logger, opts...)
	require.NoError(t, err)
	return s, logs
}

func scoredTable() *domain.ScoredTable {
	return &domain.ScoredTable{
		Sheet:   "3a",
		Columns: []string{"Lp.", "Nazwisko", "Ilość punktów", "Procent", "Ocena", "Uwagi"},
		Rows: []domain.ScoredRow{
			{Rank: 1, Name: "Jan Kowalski", Points: 58, Percent: 58.0 / 60, Grade: "5 (bardzo dobry)", Passthrough: []string{""}},
			{Rank: 2, Name: "Ala Nowak", Points: 30, Percent: 0.5, Grade: "3 (dostateczny)", Passthrough: []string{"poprawa"}},
		},
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"6A Historia – Sprawdzian 1", "6A_Historia__Sprawdzian_1"},
		{"wyniki.xlsx – 3a", "wyniki_xlsx__3a"},
		{"  a/b\\c|d;e:f,g  ", "a_b_c_d_e_f_g"},
		{"Zażółć gęślą", "Za_gl"},
		{"ąęł", "wyniki"},
		{"___", "wyniki"},
		{"keep-dash_and_underscore", "keep-dash_and_underscore"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestTruncatedSlug(t *testing.T) {
	long := "abcdefghijklmnopqrstuvwxyz0123456789ABCDEFGHIJ"
	assert.Equal(t, long[:40], truncatedSlug(long))
}

func TestWriteAndRead_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithClock(fixedClock("2024-03-05 14:07:09")))

	meta := map[string]any{
		domain.MetaSource:      domain.SourceSingleFile,
		domain.MetaMaxPoints:   60.0,
		domain.MetaScaleRows:   domain.DefaultScale(),
		domain.MetaSheetWeight: nil,
	}
	id, err := s.Write(ctx, "SP Górzno", "wyniki.xlsx – 3a", scoredTable(), meta)
	require.NoError(t, err)
	assert.Equal(t, "20240305_140709_wyniki_xlsx__3a.json", id)

	doc, err := s.Read(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Schema)
	assert.Equal(t, "SP Górzno", doc.Context)
	assert.Equal(t, "wyniki.xlsx – 3a", doc.Title)
	assert.Equal(t, "2024-03-05T14:07:09", doc.Created)
	assert.Equal(t, scoredTable().Columns, doc.Columns)
	require.Len(t, doc.Rows, 2)
	for _, r := range doc.Rows {
		assert.Len(t, r, len(doc.Columns))
	}
	assert.Equal(t, []any{1.0, "Jan Kowalski", 58.0, 58.0 / 60, "5 (bardzo dobry)", ""}, doc.Rows[0])
	assert.Equal(t, domain.SourceSingleFile, doc.Meta[domain.MetaSource])
	assert.Nil(t, doc.Meta[domain.MetaSheetWeight])
	assert.Len(t, doc.Meta[domain.MetaScaleRows], 6)

	created, ok := doc.CreatedTime()
	require.True(t, ok)
	assert.Equal(t, 2024, created.Year())
}

func TestWrite_KeyCollisionGetsSuffix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithClock(fixedClock("2024-03-05 14:07:09")))

	first, err := s.Write(ctx, "c", "Test", scoredTable(), nil)
	require.NoError(t, err)
	second, err := s.Write(ctx, "c", "Test", scoredTable(), nil)
	require.NoError(t, err)

	assert.Equal(t, "20240305_140709_Test.json", first)
	assert.Equal(t, "20240305_140709_Test-2.json", second)

	leftovers, err := filepath.Glob(filepath.Join(s.Dir(), ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteRows_RejectsRaggedRows(t *testing.T) {
	s := newTestStore(t)
	_, err := s.WriteRows(context.Background(), "c", "t", []string{"a", "b"}, [][]any{{1}}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestRead_Errors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "bad.json"), []byte("{not json"), 0o644))

	tests := []struct {
		name    string
		id      string
		errType apperrors.ErrorType
	}{
		{"missing", "20240101_000000_x.json", apperrors.ErrTypeNotFound},
		{"corrupt", "bad.json", apperrors.ErrTypeCorruptData},
		{"path traversal", "../secret.json", apperrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Read(ctx, tt.id)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.errType), err.Error())
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Write(ctx, "c", "t", scoredTable(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Read(ctx, id)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	assert.NoError(t, s.Delete(ctx, id), "deleting a missing document is not an error")
}

func TestListAll_SkipsCorruptAndOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, logs := newLoggedStore(t, WithDecodeWorkers(2))

	older, err := s.WriteRows(ctx, "c", "older", []string{"Nazwisko"}, [][]any{{"A"}}, nil)
	require.NoError(t, err)
	newer, err := s.WriteRows(ctx, "c", "newer", []string{"Nazwisko"}, [][]any{{"B"}}, nil)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(s.Dir(), older), base, base))
	require.NoError(t, os.Chtimes(filepath.Join(s.Dir(), newer), base.Add(time.Minute), base.Add(time.Minute)))

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "broken.json"), []byte(`{"title": `), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "array.json"), []byte(`[1,2]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte(`x`), 0o644))
	// Wrongly typed members are tolerated and the title falls back to the file name.
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "odd.json"), []byte(`{"meta": [1], "columns": "x"}`), 0o644))
	past := base.Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(s.Dir(), "odd.json"), past, past))

	listing, err := s.ListAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, listing.Corrupt)
	var skipped []any
	for _, e := range logs.Entries() {
		if e.Level == slog.LevelWarn && e.Message == "skipping corrupt archive document" {
			skipped = append(skipped, e.Attrs["id"])
		}
	}
	assert.ElementsMatch(t, []any{"broken.json", "array.json"}, skipped)
	warn := testutil.RequireLog(t, logs, slog.LevelWarn, "corrupt")
	assert.Equal(t, "archive", warn.Attrs["component"])
	require.Len(t, listing.Records, 3)
	assert.Equal(t, newer, listing.Records[0].ID)
	assert.Equal(t, older, listing.Records[1].ID)
	assert.Equal(t, "odd.json", listing.Records[2].ID)
	assert.Equal(t, "odd", listing.Records[2].Document.Title)
	assert.Empty(t, listing.Records[2].Document.Meta)
	assert.Equal(t, [][]any{{"B"}}, listing.Records[0].Document.Rows)
}

func TestListAll_Empty(t *testing.T) {
	listing, err := newTestStore(t).ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listing.Records)
	assert.Zero(t, listing.Corrupt)
}
