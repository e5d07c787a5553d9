package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gradecli/internal/aggregate"
	"gradecli/internal/config"
	apperrors "gradecli/internal/errors"
	"gradecli/internal/files"
	"gradecli/internal/operations"
	"gradecli/internal/query"
	"gradecli/pkg/contracts/domain"
)

// scoringFlags are the options shared by score and batch. Grading
// overrides apply to this run only and are not saved in the context.
type scoringFlags struct {
	outDir    string
	subject   string
	className string
	school    string
	maxPoints float64
	scale     string
	round     bool
	weighted  bool
	noArchive bool
}

func (f *scoringFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.outDir, "out-dir", "", "directory for result workbooks (default: next to the input)")
	fs.StringVar(&f.subject, "subject", "", "subject stored with the result; overrides the META sheet")
	fs.StringVar(&f.className, "class", "", "class stored with the result; overrides the META sheet")
	fs.StringVar(&f.school, "school", "", "school stored with the result; overrides the META sheet")
	fs.Float64Var(&f.maxPoints, "max-points", 0, "maximum points of the test (default: from the context)")
	fs.StringVar(&f.scale, "scale", "", "scale profile to grade with (default: the context's active scale)")
	fs.BoolVar(&f.round, "round", false, "round the percent to a whole number before grading")
	fs.BoolVar(&f.weighted, "weighted", false, "report the weighted mean over sheets")
	fs.BoolVar(&f.noArchive, "no-archive", false, "do not store the result in the archive")
}

// apply returns the context settings with this run's overrides.
func (f *scoringFlags) apply(cmd *cobra.Command, c domain.ContextSettings) (domain.ContextSettings, error) {
	fs := cmd.Flags()
	if fs.Changed("max-points") {
		c.MaxPoints = f.maxPoints
	}
	if f.scale != "" {
		if err := config.SelectScale(&c, f.scale); err != nil {
			return c, err
		}
	}
	if fs.Changed("round") {
		c.RoundPercentBeforeGrade = f.round
	}
	if fs.Changed("weighted") {
		c.UseWeightedMean = f.weighted
	}
	return c, nil
}

func (f *scoringFlags) meta() domain.SheetMeta {
	return domain.SheetMeta{Subject: f.subject, ClassName: f.className, School: f.school}
}

func (f *scoringFlags) outputDir(a *app) string {
	if f.outDir != "" {
		return f.outDir
	}
	return a.paths.OutputDir
}

func newScoreCommand(a *app) *cobra.Command {
	sf := &scoringFlags{}
	var outPath, manual string

	cmd := &cobra.Command{
		Use:   "score [FILE|DIR]",
		Short: "Grade one spreadsheet",
		Long: `Grade every sheet of one spreadsheet with the current context.

A sheet named META supplies subject, class and school. Any sheet that cannot
be graded fails the whole file. Given a directory, the most recently modified
spreadsheet in it is graded; with no argument the context's last file is
graded again.

With --manual the students come from a list instead of a spreadsheet, one
per line as "name;points" (a TAB or the last space also works, decimal
commas are accepted). Use - to read the list from standard input.

Examples:
  gradecli score klasa3a.xlsx
  gradecli score sprawdzian.ods --max-points 25 --scale "Sprawdzian 25 pkt"
  gradecli score wyniki.csv --out wyniki_ocenione.xlsx --no-archive
  gradecli score ~/Pobrane
  gradecli score --manual lista.txt
  gradecli score --manual - --subject Historia < lista.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if manual != "" {
				if len(args) > 0 {
					return apperrors.NewValidationError("manual", "--manual cannot be combined with a file argument")
				}
				return a.scoreManual(cmd, sf, manual, outPath)
			}

			st, ctxName, err := a.loadSettings()
			if err != nil {
				return err
			}
			input, err := a.resolveInput(args, st.Context(ctxName))
			if err != nil {
				return err
			}
			if err := a.validator.ValidateSpreadsheet(input); err != nil {
				return err
			}
			settings, err := sf.apply(cmd, *st.Context(ctxName))
			if err != nil {
				return err
			}

			outDir := sf.outputDir(a)
			if err := a.checkOutput(outPath, outDir); err != nil {
				return err
			}

			res, err := a.runner().ScoreFile(cmd.Context(), operations.Job{
				InputPath:  input,
				OutputPath: outPath,
				OutputDir:  outDir,
				Context:    ctxName,
				Settings:   settings,
				Meta:       sf.meta(),
				Defaults:   defaultMeta(st),
				Source:     domain.SourceSingleFile,
				NoArchive:  sf.noArchive,
			})
			if err != nil {
				return err
			}

			a.rememberRun(ctxName, input, res.OutputPath)
			a.syncSubjects(res.Meta.Subject)

			if a.flags.jsonOutput {
				return printJSON(a.out, newFileReport(res))
			}
			printFileResult(a.out, res)
			return nil
		},
	}

	sf.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "result workbook path (default: <name>"+config.ResultFileSuffix+")")
	cmd.Flags().StringVar(&manual, "manual", "", "grade a typed list of \"name;points\" lines from FILE, or - for stdin")
	return cmd
}

func (a *app) checkOutput(outPath, outDir string) error {
	switch {
	case outPath != "":
		return a.validator.ValidateOutputDirectory(filepath.Dir(outPath))
	case outDir != "":
		return a.validator.ValidateOutputDirectory(outDir)
	}
	return nil
}

// scoreManual grades a typed list. The list is not remembered as the
// context's last file.
func (a *app) scoreManual(cmd *cobra.Command, sf *scoringFlags, source, outPath string) error {
	st, ctxName, err := a.loadSettings()
	if err != nil {
		return err
	}
	settings, err := sf.apply(cmd, *st.Context(ctxName))
	if err != nil {
		return err
	}
	outDir := sf.outputDir(a)
	if err := a.checkOutput(outPath, outDir); err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if source != operations.StdinPath {
		if err := a.validator.ValidateFile(source); err != nil {
			return err
		}
		f, err := os.Open(source)
		if err != nil {
			return apperrors.NewStorageError("failed to open manual input", err).WithContext("path", source)
		}
		defer f.Close()
		in = f
	}

	res, err := a.runner().ScoreManual(cmd.Context(), operations.Job{
		InputPath:  source,
		OutputPath: outPath,
		OutputDir:  outDir,
		Context:    ctxName,
		Settings:   settings,
		Meta:       sf.meta(),
		Defaults:   defaultMeta(st),
		NoArchive:  sf.noArchive,
	}, in)
	if err != nil {
		return err
	}
	a.syncSubjects(res.Meta.Subject)

	if a.flags.jsonOutput {
		return printJSON(a.out, newFileReport(res))
	}
	printFileResult(a.out, res)
	return nil
}

// resolveInput picks the file to grade: the argument, the newest spreadsheet
// in a directory argument, or the last graded file.
func (a *app) resolveInput(args []string, c *domain.ContextSettings) (string, error) {
	if len(args) == 0 {
		if c.LastFile == "" {
			return "", apperrors.NewValidationError("file", "no file given and no previous run in this context")
		}
		return c.LastFile, nil
	}
	info, err := os.Stat(args[0])
	if err != nil || !info.IsDir() {
		return args[0], nil
	}
	found, err := a.discovery.FindInputFiles(args[0])
	if err != nil {
		return "", err
	}
	latest, ok := files.GetLatestFile(found)
	if !ok {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("spreadsheet in %s", args[0]))
	}
	a.logger.Info("Grading newest file in directory", slog.String("dir", args[0]), slog.String("file", latest.Path))
	return latest.Path, nil
}

type sheetReport struct {
	Name        string            `json:"name"`
	Stats       domain.SheetStats `json:"stats"`
	DroppedRows int               `json:"dropped_rows"`
	Advisories  []domain.Advisory `json:"advisories,omitempty"`
}

type fileReport struct {
	Input         string            `json:"input"`
	Output        string            `json:"output"`
	Meta          domain.SheetMeta  `json:"meta"`
	Sheets        []sheetReport     `json:"sheets"`
	SkippedSheets map[string]string `json:"skipped_sheets,omitempty"`
	Global        domain.SheetStats `json:"global"`
	WeightedMean  *float64          `json:"weighted_mean,omitempty"`
	ShortSummary  string            `json:"short_summary,omitempty"`
	ArchiveID     string            `json:"archive_id,omitempty"`
	ArchiveError  string            `json:"archive_error,omitempty"`
}

func newFileReport(res *operations.FileResult) fileReport {
	r := fileReport{
		Input:        res.InputPath,
		Output:       res.OutputPath,
		Meta:         res.Meta,
		Global:       res.Aggregate.Global,
		WeightedMean: res.Aggregate.WeightedMean,
		ShortSummary: res.ShortSummary,
		ArchiveID:    res.ArchiveID,
	}
	for _, t := range res.Tables {
		r.Sheets = append(r.Sheets, sheetReport{
			Name:        t.Sheet,
			Stats:       res.Aggregate.PerSheet[t.Sheet],
			DroppedRows: t.DroppedRows,
			Advisories:  t.Advisories,
		})
	}
	if len(res.SheetErrors) > 0 {
		r.SkippedSheets = make(map[string]string, len(res.SheetErrors))
		for _, e := range res.SheetErrors {
			r.SkippedSheets[e.Sheet] = e.Error()
		}
	}
	if res.ArchiveErr != nil {
		r.ArchiveError = res.ArchiveErr.Error()
	}
	return r
}

func printFileResult(w io.Writer, res *operations.FileResult) {
	fmt.Fprintf(w, "Result: %s\n", res.OutputPath)
	for _, t := range res.Tables {
		s := res.Aggregate.PerSheet[t.Sheet]
		fmt.Fprintf(w, "Sheet %s: %d student(s), mean %s pt (%s), dominant grade %s\n",
			t.Sheet, s.Count,
			aggregate.DecimalComma(s.MeanPoints, 1),
			percentText(s.MeanPercent),
			aggregate.DominantGrade(s.Histogram))
		if t.DroppedRows > 0 {
			fmt.Fprintf(w, "  %d row(s) without a name or points were skipped\n", t.DroppedRows)
		}
		for _, adv := range t.Advisories {
			fmt.Fprintf(w, "  Warning: %s\n", advisoryText(adv))
		}
	}
	for _, e := range res.SheetErrors {
		fmt.Fprintf(w, "Skipped sheet %s: %v\n", e.Sheet, e.Cause)
	}
	if res.Aggregate.WeightedMean != nil {
		fmt.Fprintf(w, "Weighted mean: %s pt\n", aggregate.DecimalComma(*res.Aggregate.WeightedMean, 2))
	}
	if res.ShortSummary != "" {
		fmt.Fprintln(w, res.ShortSummary)
	}
	switch {
	case res.ArchiveID != "":
		fmt.Fprintf(w, "Archived as %s\n", res.ArchiveID)
	case res.ArchiveErr != nil:
		fmt.Fprintf(w, "Not archived: %v\n", res.ArchiveErr)
	}
}

func advisoryText(adv domain.Advisory) string {
	switch adv.Kind {
	case domain.AdvisoryOverMax:
		return fmt.Sprintf("%s has %s points, more than the maximum %s",
			adv.Name, query.CellText(adv.Points), query.CellText(adv.MaxPoints))
	case domain.AdvisoryZeroPoints:
		return fmt.Sprintf("%s has 0 points", adv.Name)
	}
	return fmt.Sprintf("%s: %s", adv.Name, adv.Kind)
}
