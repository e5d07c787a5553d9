package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gradecli/internal/archive"
	"gradecli/internal/sheets"
	"gradecli/pkg/contracts/domain"
)

// AllYears is the school-year choice that disables year filtering.
const AllYears = "Wszystkie lata"

// Index is the derived, query-ready view of one archive listing. It is
// rebuilt on every listing pass and never written back.
type Index struct {
	Summaries []domain.DocumentSummary
	Corrupt   int

	records []archive.Record
}

// BuildIndex derives the summaries of every listed document. Order follows
// the listing, newest first.
func BuildIndex(listing *archive.Listing) *Index {
	idx := &Index{}
	if listing == nil {
		return idx
	}
	idx.Corrupt = listing.Corrupt
	idx.records = listing.Records
	idx.Summaries = make([]domain.DocumentSummary, 0, len(listing.Records))
	for _, r := range listing.Records {
		idx.Summaries = append(idx.Summaries, summarize(r))
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.Summaries)
}

// Summary looks a document up by id.
func (idx *Index) Summary(id string) (domain.DocumentSummary, bool) {
	for _, s := range idx.Summaries {
		if s.ID == id {
			return s, true
		}
	}
	return domain.DocumentSummary{}, false
}

func summarize(r archive.Record) domain.DocumentSummary {
	doc := r.Document
	title := doc.Title
	if title == "" {
		title = strings.TrimSuffix(r.ID, ".json")
	}
	return domain.DocumentSummary{
		ID:         r.ID,
		Path:       r.Path,
		Created:    DisplayDate(doc.Created),
		Context:    doc.Context,
		ClassName:  metaString(doc.Meta, domain.MetaClassName),
		Subject:    metaString(doc.Meta, domain.MetaSubject),
		School:     metaString(doc.Meta, domain.MetaSchool),
		Title:      title,
		Students:   studentNames(doc),
		SchoolYear: SchoolYear(doc.Created, r.ModTime),
		Summary:    metaString(doc.Meta, domain.MetaShortSummary),
		ModTime:    r.ModTime,
	}
}

// DisplayDate turns a stored timestamp into "YYYY-MM-DD HH:MM".
func DisplayDate(created string) string {
	s := strings.Replace(created, "T", " ", 1)
	if r := []rune(s); len(r) > 16 {
		s = string(r[:16])
	}
	return s
}

// SchoolYear buckets a document into a Polish school year. The year starts
// in September: 2024-09-01 belongs to "2024/2025", 2024-08-31 to
// "2023/2024". The date comes from the first ten characters of created, or
// from the file modification time when created is missing or malformed.
func SchoolYear(created string, modTime time.Time) string {
	year, month := modTime.Year(), int(modTime.Month())
	if created != "" {
		head := created
		if len(head) > 10 {
			head = head[:10]
		}
		parts := strings.Split(head, "-")
		if len(parts) == 3 {
			y, err1 := strconv.Atoi(parts[0])
			m, err2 := strconv.Atoi(parts[1])
			_, err3 := strconv.Atoi(parts[2])
			if err1 == nil && err2 == nil && err3 == nil {
				year, month = y, m
			}
		}
	}
	if month >= 9 {
		return fmt.Sprintf("%d/%d", year, year+1)
	}
	return fmt.Sprintf("%d/%d", year-1, year)
}

// studentNames joins the non-empty cells of the name column.
func studentNames(doc *domain.ArchiveDocument) string {
	col := sheets.ResolveColumns(doc.Columns).Name
	if col < 0 {
		return ""
	}
	var names []string
	for _, row := range doc.Rows {
		if col >= len(row) {
			continue
		}
		if s := CellText(row[col]); s != "" {
			names = append(names, s)
		}
	}
	return strings.Join(names, " ")
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	return CellText(meta[key])
}

// CellText renders a stored cell as trimmed text. Integral numbers lose
// their fraction; null is empty.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "True"
		}
		return "False"
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// cellNumber reads a stored cell as a number, accepting text with a comma
// decimal separator.
func cellNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		return sheets.ParseNumber(x)
	}
	return 0, false
}
