package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"gradecli/internal/exporter"
	"gradecli/internal/query"
	"gradecli/pkg/contracts/domain"
)

func newArchiveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse and manage archived results",
		Long: `Every scoring run stores its first graded sheet as an archive document.

Commands:
  list    list documents, with filters and sorting
  show    print one document
  delete  remove documents
  years   list the school years present in the archive`,
	}
	cmd.AddCommand(
		newArchiveListCommand(a),
		newArchiveShowCommand(a),
		newArchiveDeleteCommand(a),
		newArchiveYearsCommand(a),
	)
	return cmd
}

func newArchiveListCommand(a *app) *cobra.Command {
	var (
		filter  query.Filter
		sortBy  string
		desc    bool
		showAll bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived results",
		Long: `List archived results, newest first.

--text matches title, class, school, subject, context and student names.
--subject accepts the subject or its tab label. Documents whose subject tab
is hidden are left out unless --all is given.

Sort columns: date, context, class, subject, school, title, school_year, summary.

Examples:
  gradecli archive list
  gradecli archive list --year 2024/2025 --subject Matematyka
  gradecli archive list --text kowalski --sort class`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sortBy != "" {
				if err := query.CheckSortColumn(sortBy, query.SummaryColumns); err != nil {
					return err
				}
			}
			idx, err := a.archiveIndex(cmd.Context())
			if err != nil {
				return err
			}
			tabs := a.tabs.Load()
			if filter.Subject != "" {
				if key, ok := tabs.SubjectForLabel(filter.Subject); ok {
					filter.Subject = key
				}
			}

			rows := filter.Apply(idx.Summaries)
			if !showAll && filter.Subject == "" {
				visible := make([]domain.DocumentSummary, 0, len(rows))
				for _, s := range rows {
					if t, ok := tabs.Tabs[strings.TrimSpace(s.Subject)]; ok && !t.Visible {
						continue
					}
					visible = append(visible, s)
				}
				rows = visible
			}
			if sortBy != "" {
				rows = query.Sort(rows, sortBy, desc)
			}

			if a.flags.jsonOutput {
				return printJSON(a.out, rows)
			}
			t := newTable(a.out, "ID", "Data", "Kontekst", "Klasa", "Przedmiot", "Tytuł", "Rok szkolny")
			for _, s := range rows {
				subject := s.Subject
				if subject != "" {
					subject = tabs.DisplayLabel(subject)
				}
				t.row(s.ID, query.DisplayDate(s.Created), orDash(s.Context), orDash(s.ClassName),
					orDash(subject), s.Title, orDash(s.SchoolYear))
			}
			if err := t.flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d of %d document(s)\n", len(rows), idx.Len())
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&filter.Text, "text", "", "free-text filter")
	fs.StringVar(&filter.Subject, "subject", "", "subject filter")
	fs.StringVar(&filter.SchoolYear, "year", "", "school year filter, e.g. 2024/2025")
	fs.StringVar(&sortBy, "sort", "", "sort column")
	fs.BoolVar(&desc, "desc", false, "sort descending")
	fs.BoolVar(&showAll, "all", false, "include subjects with hidden tabs")
	return cmd
}

func newArchiveShowCommand(a *app) *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print one archived result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.index.Read(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			records := make([][]string, len(doc.Rows))
			for i, row := range doc.Rows {
				records[i] = make([]string, len(row))
				for j, v := range row {
					records[i][j] = query.CellText(v)
				}
			}

			if csvPath != "" {
				if err := exporter.NewCSVWriter(a.logger).WriteSimpleCSV(csvPath, doc.Columns, records); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Wrote %d row(s) to %s\n", len(records), csvPath)
				return nil
			}
			if a.flags.jsonOutput {
				return printJSON(a.out, doc)
			}

			fmt.Fprintln(a.out, doc.Title)
			printKeyValue(a.out, "Context", orDash(doc.Context))
			printKeyValue(a.out, "Created", query.DisplayDate(doc.Created))
			keys := make([]string, 0, len(doc.Meta))
			for k := range doc.Meta {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if k == domain.MetaScaleRows {
					continue
				}
				printKeyValue(a.out, k, query.CellText(doc.Meta[k]))
			}
			fmt.Fprintln(a.out)

			t := newTable(a.out, doc.Columns...)
			for _, cells := range records {
				t.row(cells...)
			}
			return t.flush()
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "export the result rows to a CSV file")
	return cmd
}

func newArchiveDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete archived results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := a.index.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted %s\n", id)
			}
			return nil
		},
	}
}

func newArchiveYearsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "years",
		Short: "List school years present in the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, err := a.archiveIndex(cmd.Context())
			if err != nil {
				return err
			}
			years := query.SchoolYears(idx.Summaries)
			if a.flags.jsonOutput {
				return printJSON(a.out, years)
			}
			for _, y := range years {
				fmt.Fprintln(a.out, y)
			}
			return nil
		},
	}
}
