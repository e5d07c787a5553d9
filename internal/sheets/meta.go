package sheets

import (
	"strings"

	"gradecli/pkg/contracts/domain"
)

// metaScanRows is how many leading rows of a META sheet are scanned.
const metaScanRows = 10

// metaSheetNames are tried in order when looking for the META sheet.
var metaSheetNames = []string{"META", "_meta", "Meta", "meta"}

// IsMetaSheet reports whether a sheet holds descriptive data and must not be
// scored.
func IsMetaSheet(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	return n == "meta" || n == "_meta"
}

// FindMeta returns the metadata of the first META sheet in the workbook.
func FindMeta(wb *Workbook) (domain.SheetMeta, bool) {
	for _, cand := range metaSheetNames {
		if s, ok := wb.Sheet(cand); ok {
			return ParseMeta(s), true
		}
	}
	return domain.SheetMeta{}, false
}

// ParseMeta reads key/value pairs from columns A and B of the first rows.
// The first occurrence of each key wins.
func ParseMeta(s RawSheet) domain.SheetMeta {
	var meta domain.SheetMeta
	for i, row := range s.Rows {
		if i >= metaScanRows {
			break
		}
		if len(row) < 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(row[0]))
		val := strings.TrimSpace(row[1])
		if val == "" {
			continue
		}
		switch key {
		case "przedmiot":
			if meta.Subject == "" {
				meta.Subject = val
			}
		case "klasa", "klasa / grupa":
			if meta.ClassName == "" {
				meta.ClassName = val
			}
		case "szkoła", "szkola", "szkoła / placówka", "szkola / placowka":
			if meta.School == "" {
				meta.School = val
			}
		}
	}
	return meta
}

// Merge fills fields of m that are empty from other.
func Merge(m, other domain.SheetMeta) domain.SheetMeta {
	if m.Subject == "" {
		m.Subject = other.Subject
	}
	if m.ClassName == "" {
		m.ClassName = other.ClassName
	}
	if m.School == "" {
		m.School = other.School
	}
	return m
}
