package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"gradecli/internal/exporter"
	"gradecli/internal/query"
	"gradecli/pkg/contracts/domain"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		sortBy   string
		desc     bool
		csvPath  string
		overview bool
	)

	cmd := &cobra.Command{
		Use:   "history NAME",
		Short: "Show a student's results across the archive",
		Long: `Collect every archived row whose student name contains NAME
(case-insensitive), oldest document first.

--overview lists matches newest first and reports percents exactly as
stored. --csv writes the rows to a file Excel opens directly.

Sort columns: student, date, context, class, title, points, percent, grade.

Examples:
  gradecli history Kowalski
  gradecli history "Anna Nowak" --sort percent --desc
  gradecli history Kowalski --csv kowalski.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sortBy != "" {
				if err := query.CheckSortColumn(sortBy, query.HistoryColumns); err != nil {
					return err
				}
			}
			idx, err := a.archiveIndex(cmd.Context())
			if err != nil {
				return err
			}

			var rows []domain.HistoryRow
			if overview {
				rows, _ = idx.StudentOverview(args[0])
			} else {
				rows = idx.StudentHistory(args[0])
			}
			if sortBy != "" {
				rows = query.SortHistory(rows, sortBy, desc)
			}

			if csvPath != "" {
				if err := exporter.NewCSVWriter(a.logger).WriteHistory(csvPath, rows); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Wrote %d row(s) to %s\n", len(rows), csvPath)
				return nil
			}
			if a.flags.jsonOutput {
				return printJSON(a.out, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintf(a.out, "No results for %q\n", args[0])
				return nil
			}

			t := newTable(a.out, exporter.HistoryHeaders...)
			for _, r := range exporter.HistoryRecords(rows) {
				t.row(r...)
			}
			return t.flush()
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&sortBy, "sort", "", "sort column")
	fs.BoolVar(&desc, "desc", false, "sort descending")
	fs.StringVar(&csvPath, "csv", "", "write the rows to this CSV file")
	fs.BoolVar(&overview, "overview", false, "newest first, percents as stored")
	return cmd
}
