package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/query"
	"gradecli/pkg/contracts/domain"
)

func newSubjectsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "Manage subject tabs",
		Long: `Subjects come from the "subject" stored with archived results. Each
subject has a tab with a display label and a visibility switch; hidden
subjects are left out of "archive list".`,
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List subjects found in the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, err := a.archiveIndex(cmd.Context())
			if err != nil {
				return err
			}
			subjects := query.Subjects(idx.Summaries)
			a.syncSubjects(subjects...)
			tabs := a.tabs.Load()

			shown := subjects
			if !all {
				shown = query.VisibleSubjects(tabs, subjects)
			}
			if a.flags.jsonOutput {
				out := make(map[string]domain.SubjectTab, len(shown))
				for _, s := range shown {
					out[s] = tabs.Tabs[s]
				}
				return printJSON(a.out, out)
			}
			t := newTable(a.out, "Przedmiot", "Etykieta", "Widoczny")
			for _, s := range shown {
				visible := "tak"
				if tab, ok := tabs.Tabs[s]; ok && !tab.Visible {
					visible = "nie"
				}
				t.row(s, tabs.DisplayLabel(s), visible)
			}
			return t.flush()
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include hidden subjects")

	cmd.AddCommand(
		list,
		newSubjectTabCommand(a, "show SUBJECT", "Show a subject tab", func(tab *domain.SubjectTab, _ []string) {
			tab.Visible = true
		}),
		newSubjectTabCommand(a, "hide SUBJECT", "Hide a subject tab", func(tab *domain.SubjectTab, _ []string) {
			tab.Visible = false
		}),
		newSubjectTabCommand(a, "label SUBJECT LABEL", "Set the display label of a subject", func(tab *domain.SubjectTab, args []string) {
			tab.Label = strings.TrimSpace(args[1])
		}),
	)
	return cmd
}

// newSubjectTabCommand builds a command that edits one subject tab. The
// subject must be known to the tabs or given by its exact key.
func newSubjectTabCommand(a *app, use, short string, edit func(*domain.SubjectTab, []string)) *cobra.Command {
	nargs := len(strings.Fields(use)) - 1
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(_ *cobra.Command, args []string) error {
			tabs := a.tabs.Load()
			key := args[0]
			if _, ok := tabs.Tabs[key]; !ok {
				found, ok := tabs.SubjectForLabel(key)
				if !ok {
					return apperrors.NewNotFoundError(fmt.Sprintf("subject %q (known: %s)", key, strings.Join(tabKeys(tabs), ", ")))
				}
				key = found
			}
			tab := tabs.Tabs[key]
			edit(&tab, args)
			tabs.Tabs[key] = tab
			if err := a.tabs.Save(tabs); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: %s (visible: %t)\n", key, tabs.DisplayLabel(key), tab.Visible)
			return nil
		},
	}
}

func tabKeys(tabs *domain.SubjectTabs) []string {
	keys := make([]string, 0, len(tabs.Tabs))
	for k := range tabs.Tabs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
