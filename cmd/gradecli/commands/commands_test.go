package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/shared/testutil"
	"gradecli/pkg/contracts"
	"gradecli/pkg/contracts/domain"
)

// setupEnv points the data directory at a temp dir and isolates the test
// from any user configuration.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("APPDATA", "")
	t.Setenv("GRADECLI_CONFIG", "")
	t.Setenv("GRADECLI_PATHS_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("GRADECLI_PATHS_OUTPUT_DIR", "")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, "", args...)
}

func runCLIWithInput(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd, a := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	require.NoError(t, a.close(context.Background()))
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := runCLI(t, args...)
	require.NoError(t, err, "stderr: %s", errOut)
	return out
}

func listArchive(t *testing.T, args ...string) []domain.DocumentSummary {
	t.Helper()
	var docs []domain.DocumentSummary
	out := mustRun(t, append([]string{"archive", "list", "--json"}, args...)...)
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	return docs
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "version")
	assert.Equal(t, "gradecli 1.0.0\n", out)

	var info contracts.VersionInfo
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "version", "--json")), &info))
	assert.Equal(t, contracts.Version, info.Version)
	assert.Equal(t, domain.ArchiveSchemaVersion, info.ArchiveFormat)
}

func TestScoreArchiveHistory(t *testing.T) {
	dir := setupEnv(t)
	input := testutil.WriteWorkbook(t, dir, "klasa.xlsx", testutil.ScoreSheet("3a"))
	outDir := filepath.Join(dir, "wyniki")

	out := mustRun(t, "score", input, "--out-dir", outDir, "--subject", "Matematyka")
	assert.Contains(t, out, "Result: "+filepath.Join(outDir, "klasa_przetworzone.xlsx"))
	assert.Contains(t, out, "Sheet 3a: 3 student(s)")
	assert.Contains(t, out, "Warning: Jan has 61 points, more than the maximum 60")
	assert.Contains(t, out, "Archived as ")
	assert.FileExists(t, filepath.Join(outDir, "klasa_przetworzone.xlsx"))

	docs := listArchive(t)
	require.Len(t, docs, 1)
	assert.Equal(t, "klasa.xlsx – 3a", docs[0].Title)
	assert.Equal(t, "Matematyka", docs[0].Subject)
	assert.Equal(t, domain.DefaultContextName, docs[0].Context)

	show := mustRun(t, "archive", "show", docs[0].ID)
	assert.Contains(t, show, "klasa.xlsx – 3a")
	assert.Contains(t, show, "6 (celujący)")

	var history []domain.HistoryRow
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "history", "jan", "--json")), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "Jan", history[0].Student)
	assert.Equal(t, "6 (celujący)", history[0].Grade)

	csvPath := filepath.Join(dir, "jan.csv")
	mustRun(t, "history", "Jan", "--csv", csvPath)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\xEF\xBB\xBF")))
	assert.Contains(t, string(data), "Uczeń;Data;Kontekst")

	docCSV := filepath.Join(dir, "3a.csv")
	assert.Contains(t, mustRun(t, "archive", "show", docs[0].ID, "--csv", docCSV), "Wrote 3 row(s)")
	data, err = os.ReadFile(docCSV)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Lp.,Nazwisko,Ilość punktów,Procent,Ocena")

	none := mustRun(t, "history", "Zenon")
	assert.Contains(t, none, `No results for "Zenon"`)

	mustRun(t, "archive", "delete", docs[0].ID)
	assert.Empty(t, listArchive(t))
}

func TestScoreRemembersLastRun(t *testing.T) {
	dir := setupEnv(t)
	input := testutil.WriteWorkbook(t, dir, "klasa.xlsx", testutil.ScoreSheet("3a"))

	mustRun(t, "score", input, "--no-archive")
	assert.Empty(t, listArchive(t))

	var c domain.ContextSettings
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "context", "show", "--json")), &c))
	assert.Equal(t, input, c.LastFile)
	assert.Equal(t, dir, c.LastOutputDir)

	out := mustRun(t, "score", "--no-archive")
	assert.Contains(t, out, "Result: "+filepath.Join(dir, "klasa_przetworzone.xlsx"))
}

func TestScoreDirectoryPicksNewest(t *testing.T) {
	dir := setupEnv(t)
	inputs := filepath.Join(dir, "wejscie")
	require.NoError(t, os.MkdirAll(inputs, 0o755))
	older := testutil.WriteWorkbook(t, inputs, "stary.xlsx", testutil.ScoreSheet("3a"))
	testutil.WriteWorkbook(t, inputs, "nowy.xlsx", testutil.ScoreSheet("3b"))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	out := mustRun(t, "score", inputs, "--no-archive", "--out-dir", filepath.Join(dir, "out"))
	assert.Contains(t, out, "nowy_przetworzone.xlsx")
	assert.Contains(t, out, "Sheet 3b:")
}

func TestScoreManual(t *testing.T) {
	dir := setupEnv(t)
	outDir := filepath.Join(dir, "wyniki")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	out, errOut, err := runCLIWithInput(t, "Jan Kowalski;58\nAla Nowak\t40,5\n",
		"score", "--manual", "-", "--out-dir", outDir, "--subject", "Historia")
	require.NoError(t, err, "stderr: %s", errOut)
	assert.Contains(t, out, "Result: "+filepath.Join(outDir, "wyniki_reczne_przetworzone.xlsx"))
	assert.Contains(t, out, "Sheet Wyniki: 2 student(s)")

	docs := listArchive(t)
	require.Len(t, docs, 1)
	assert.Equal(t, "Ręczne wprowadzanie – wyniki_reczne_przetworzone", docs[0].Title)
	assert.Equal(t, "Historia", docs[0].Subject)

	var c domain.ContextSettings
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "context", "show", "--json")), &c))
	assert.Empty(t, c.LastFile)

	list := filepath.Join(dir, "lista.txt")
	require.NoError(t, os.WriteFile(list, []byte("Ola 12\n"), 0o644))
	out = mustRun(t, "score", "--manual", list, "--no-archive")
	assert.Contains(t, out, "Result: "+filepath.Join(dir, "lista_przetworzone.xlsx"))

	_, _, err = runCLIWithInput(t, "Jan;58\nAla;x\n", "score", "--manual", "-", "--out-dir", outDir)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing), "got %v", err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestScoreErrors(t *testing.T) {
	dir := setupEnv(t)
	input := testutil.WriteWorkbook(t, dir, "klasa.xlsx", testutil.ScoreSheet("3a"))

	tests := []struct {
		name     string
		args     []string
		wantType apperrors.ErrorType
	}{
		{"missing file", []string{"score", filepath.Join(dir, "brak.xlsx")}, apperrors.ErrTypeNotFound},
		{"unknown context", []string{"score", input, "--context", "Nieznany"}, apperrors.ErrTypeNotFound},
		{"unknown scale", []string{"score", input, "--scale", "Nieznana"}, apperrors.ErrTypeNotFound},
		{"bad max points", []string{"score", input, "--max-points", "0"}, apperrors.ErrTypeValidation},
		{"no file and no previous run", []string{"score"}, apperrors.ErrTypeValidation},
		{"directory without spreadsheets", []string{"score", t.TempDir()}, apperrors.ErrTypeNotFound},
		{"manual with file argument", []string{"score", input, "--manual", "-"}, apperrors.ErrTypeValidation},
		{"manual list missing", []string{"score", "--manual", filepath.Join(dir, "lista.txt")}, apperrors.ErrTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.wantType), "got %v", err)
		})
	}
}

func TestUnknownSortColumn(t *testing.T) {
	setupEnv(t)

	for _, args := range [][]string{
		{"archive", "list", "--sort", "ocena"},
		{"history", "Jan", "--sort", "wiek"},
	} {
		_, _, err := runCLI(t, args...)
		require.Error(t, err, args)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation), "got %v", err)
	}
	mustRun(t, "archive", "list", "--sort", "class", "--desc")
}

func TestBatch(t *testing.T) {
	dir := setupEnv(t)
	in := filepath.Join(dir, "in")
	require.NoError(t, os.Mkdir(in, 0o755))
	testutil.WriteWorkbook(t, in, "3a.xlsx", testutil.ScoreSheet("3a"))
	testutil.WriteWorkbook(t, in, "3b.xlsx", testutil.ScoreSheet("3b"))
	missing := filepath.Join(dir, "brak.xlsx")
	outDir := filepath.Join(dir, "out")

	out, errOut, err := runCLI(t, "batch", in, missing, "--out-dir", outDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 file(s) failed")
	assert.Contains(t, out, "Done: 2 succeeded, 1 failed, 2 archived")
	assert.Contains(t, out, "FAILED "+missing)
	assert.Contains(t, errOut, "[3/3] "+missing+": failed")
	assert.FileExists(t, filepath.Join(outDir, "3a_przetworzone.xlsx"))
	assert.FileExists(t, filepath.Join(outDir, "3b_przetworzone.xlsx"))

	docs := listArchive(t, "--sort", "title")
	require.Len(t, docs, 2)
	assert.Equal(t, "3a.xlsx – 3a", docs[0].Title)

	// results from the first run are not picked up again
	out = mustRun(t, "batch", outDir, in, "--no-archive", "--out-dir", outDir)
	assert.Contains(t, out, "Done: 2 succeeded, 0 failed, 0 archived")
}

func TestContextCommands(t *testing.T) {
	setupEnv(t)

	assert.Contains(t, mustRun(t, "context", "create", "SP1"), "Created context SP1")
	assert.Contains(t, mustRun(t, "context", "list"), "* SP1")

	mustRun(t, "context", "set", "--max-points", "40", "--round")
	var c domain.ContextSettings
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "context", "show", "--json")), &c))
	assert.Equal(t, 40.0, c.MaxPoints)
	assert.True(t, c.RoundPercentBeforeGrade)

	_, _, err := runCLI(t, "context", "set")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, _, err = runCLI(t, "context", "create", "SP1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConflict))

	mustRun(t, "context", "rename", "SP1", "SP2")
	list := mustRun(t, "context", "list")
	assert.Contains(t, list, "* SP2")
	assert.NotContains(t, list, "SP1")

	out := mustRun(t, "context", "delete", "SP2")
	assert.Contains(t, out, "current context: "+domain.DefaultContextName)

	_, _, err = runCLI(t, "context", "delete", domain.DefaultContextName)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestScaleAndWeights(t *testing.T) {
	setupEnv(t)

	mustRun(t, "context", "scale", "save", "Zal",
		"--band", "50:100:zal", "--band", "0:49:nzal")
	assert.Contains(t, mustRun(t, "context", "scale", "list"), "* Zal")
	show := mustRun(t, "context", "show")
	assert.Contains(t, show, "nzal")

	_, _, err := runCLI(t, "context", "scale", "save", "Zla", "--band", "60:50:x")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	mustRun(t, "context", "scale", "use", domain.DefaultScaleName)
	assert.Contains(t, mustRun(t, "context", "scale", "list"), "* "+domain.DefaultScaleName)

	mustRun(t, "context", "weights", "set", "3a=2", "3b=0,5")
	mustRun(t, "context", "weights", "save", "Semestr")
	mustRun(t, "context", "weights", "set", "3a=1")
	mustRun(t, "context", "weights", "use", "Semestr")
	out := mustRun(t, "context", "weights", "list")
	assert.Contains(t, out, "3a=2, 3b=0.5")
	assert.Contains(t, out, "* Semestr")

	_, _, err = runCLI(t, "context", "weights", "set", "bezwagi")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestSubjects(t *testing.T) {
	dir := setupEnv(t)
	a := testutil.WriteWorkbook(t, dir, "a.xlsx", testutil.ScoreSheet("3a"))
	b := testutil.WriteWorkbook(t, dir, "b.xlsx", testutil.ScoreSheet("3b"))
	mustRun(t, "score", a, "--subject", "Matematyka")
	mustRun(t, "score", b, "--subject", "Fizyka")

	out := mustRun(t, "subjects", "list")
	assert.Contains(t, out, "Matematyka")
	assert.Contains(t, out, "Fizyka")

	mustRun(t, "subjects", "hide", "Fizyka")
	mustRun(t, "subjects", "label", "Matematyka", "Matma")

	docs := listArchive(t)
	require.Len(t, docs, 1)
	assert.Equal(t, "Matematyka", docs[0].Subject)
	assert.Len(t, listArchive(t, "--all"), 2)
	assert.Len(t, listArchive(t, "--subject", "Matma"), 1)

	table := mustRun(t, "archive", "list")
	assert.Contains(t, table, "Matma")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(table), "1 of 2 document(s)"))

	_, _, err := runCLI(t, "subjects", "hide", "Chemia")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}
