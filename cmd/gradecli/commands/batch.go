package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/operations"
	"gradecli/pkg/contracts/domain"
)

type batchReport struct {
	domain.BatchSummary
	Cancelled bool         `json:"cancelled,omitempty"`
	Files     []fileReport `json:"files,omitempty"`
}

func newBatchCommand(a *app) *cobra.Command {
	sf := &scoringFlags{}

	cmd := &cobra.Command{
		Use:   "batch PATH...",
		Short: "Grade many spreadsheets with the same settings",
		Long: `Grade several spreadsheets one after another with the current context.

Directories contribute every supported spreadsheet they contain, skipping
office lock files and earlier results. A file that fails does not stop the
batch, and sheets that cannot be graded are skipped within their file.
Each file is archived on its own.

Examples:
  gradecli batch wyniki/
  gradecli batch 3a.xlsx 3b.xlsx --out-dir przetworzone/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := a.discovery.ExpandInputs(args)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return apperrors.NewValidationError("input", "no spreadsheets found")
			}

			st, ctxName, err := a.loadSettings()
			if err != nil {
				return err
			}
			settings, err := sf.apply(cmd, *st.Context(ctxName))
			if err != nil {
				return err
			}
			outDir := sf.outputDir(a)
			if outDir != "" {
				if err := a.validator.ValidateOutputDirectory(outDir); err != nil {
					return err
				}
			}

			res := a.runner().RunBatch(cmd.Context(), operations.BatchRequest{
				Files:     inputs,
				OutputDir: outDir,
				Context:   ctxName,
				Settings:  settings,
				Meta:      sf.meta(),
				Defaults:  defaultMeta(st),
				NoArchive: sf.noArchive,
			}, func(p operations.Progress) {
				status := "ok"
				if p.Err != nil {
					status = "failed"
				}
				fmt.Fprintf(a.errOut, "[%d/%d] %s: %s\n", p.Current, p.Total, p.File, status)
			})

			var subjects []string
			for _, r := range res.Results {
				subjects = append(subjects, r.Meta.Subject)
			}
			a.syncSubjects(subjects...)
			if len(res.Results) > 0 {
				last := res.Results[len(res.Results)-1]
				a.rememberRun(ctxName, last.InputPath, last.OutputPath)
			}

			if a.flags.jsonOutput {
				report := batchReport{BatchSummary: res.Summary, Cancelled: res.Cancelled}
				for _, r := range res.Results {
					report.Files = append(report.Files, newFileReport(r))
				}
				if err := printJSON(a.out, report); err != nil {
					return err
				}
			} else {
				printBatchResult(a, res)
			}

			if res.Cancelled {
				return operations.NewCancellationError("", cmd.Context().Err())
			}
			if res.Summary.Failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed", res.Summary.Failed, res.Summary.Total)
			}
			return nil
		},
	}

	sf.register(cmd)
	return cmd
}

func printBatchResult(a *app, res *operations.BatchResult) {
	w := a.out
	for _, r := range res.Results {
		fmt.Fprintf(w, "%s -> %s\n", r.InputPath, r.OutputPath)
		for _, e := range r.SheetErrors {
			fmt.Fprintf(w, "  skipped sheet %s: %v\n", e.Sheet, e.Cause)
		}
		if r.Advisories() > 0 {
			fmt.Fprintf(w, "  %d warning(s)\n", r.Advisories())
		}
		if r.ArchiveErr != nil {
			fmt.Fprintf(w, "  not archived: %v\n", r.ArchiveErr)
		}
	}

	failed := make([]string, 0, len(res.Summary.Errors))
	for f := range res.Summary.Errors {
		failed = append(failed, f)
	}
	sort.Strings(failed)
	for _, f := range failed {
		fmt.Fprintf(w, "FAILED %s: %s\n", f, res.Summary.Errors[f])
	}

	fmt.Fprintf(w, "Done: %d succeeded, %d failed, %d archived", res.Summary.Succeeded, res.Summary.Failed, len(res.Summary.Archived))
	if res.Cancelled {
		fmt.Fprintf(w, ", cancelled after %d of %d", res.Summary.Succeeded+res.Summary.Failed, res.Summary.Total)
	}
	fmt.Fprintln(w)
}
