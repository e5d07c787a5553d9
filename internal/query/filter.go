package query

import (
	"sort"
	"strings"

	"gradecli/pkg/contracts/domain"
)

// Filter narrows the archive listing. Empty fields do not filter.
type Filter struct {
	Text       string
	Subject    string
	SchoolYear string
}

// Apply returns the summaries that pass the filter, in their original order.
func (f Filter) Apply(summaries []domain.DocumentSummary) []domain.DocumentSummary {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	year := strings.TrimSpace(f.SchoolYear)
	if year == AllYears {
		year = ""
	}
	subject := strings.TrimSpace(f.Subject)

	out := make([]domain.DocumentSummary, 0, len(summaries))
	for _, s := range summaries {
		if year != "" && s.SchoolYear != year {
			continue
		}
		if subject != "" && strings.TrimSpace(s.Subject) != subject {
			continue
		}
		if text != "" && !matchesText(searchBlob(s), text) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// matchesText is a substring match that tolerates inflected endings: texts
// longer than four characters are retried without their last character, so
// "kowalskie" still finds "Kowalski".
func matchesText(blob, text string) bool {
	if strings.Contains(blob, text) {
		return true
	}
	if r := []rune(text); len(r) > 4 {
		return strings.Contains(blob, string(r[:len(r)-1]))
	}
	return false
}

func searchBlob(s domain.DocumentSummary) string {
	return strings.ToLower(strings.Join([]string{
		s.Created, s.Context, s.ClassName, s.Subject, s.School, s.Title, s.Students,
	}, " "))
}

// Subjects lists the distinct non-empty subjects, sorted.
func Subjects(summaries []domain.DocumentSummary) []string {
	return distinct(summaries, func(s domain.DocumentSummary) string {
		return strings.TrimSpace(s.Subject)
	}, false)
}

// SchoolYears lists the distinct school years, newest first.
func SchoolYears(summaries []domain.DocumentSummary) []string {
	return distinct(summaries, func(s domain.DocumentSummary) string {
		return s.SchoolYear
	}, true)
}

func distinct(summaries []domain.DocumentSummary, key func(domain.DocumentSummary) string, desc bool) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range summaries {
		k := key(s)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	if desc {
		sort.Sort(sort.Reverse(sort.StringSlice(out)))
	} else {
		sort.Strings(out)
	}
	return out
}

// SyncSubjectTabs adds a visible tab for every subject the tabs do not know
// yet. Existing labels and visibility are kept. It reports whether anything
// was added.
func SyncSubjectTabs(tabs *domain.SubjectTabs, subjects []string) bool {
	if tabs.Tabs == nil {
		tabs.Tabs = make(map[string]domain.SubjectTab)
	}
	changed := false
	for _, subj := range subjects {
		if _, ok := tabs.Tabs[subj]; ok {
			continue
		}
		tabs.Tabs[subj] = domain.SubjectTab{Label: subj, Visible: true}
		changed = true
	}
	return changed
}

// VisibleSubjects returns the subjects whose tabs are visible, sorted.
func VisibleSubjects(tabs *domain.SubjectTabs, subjects []string) []string {
	var out []string
	for _, subj := range subjects {
		if t, ok := tabs.Tabs[subj]; ok && !t.Visible {
			continue
		}
		out = append(out, subj)
	}
	return out
}
