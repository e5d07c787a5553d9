package domain

import "time"

// ArchiveSchemaVersion is written into every archive document.
const ArchiveSchemaVersion = 1

// Archive metadata keys.
const (
	MetaSource       = "source"
	MetaInputPath    = "input_path"
	MetaOutputPath   = "output_path"
	MetaSheet        = "sheet"
	MetaMaxPoints    = "max_points"
	MetaRoundBefore  = "round_before"
	MetaUseWeighted  = "use_weighted"
	MetaScaleRows    = "scale_rows"
	MetaSheetWeight  = "sheet_weight"
	MetaClassName    = "class_name"
	MetaSubject      = "subject"
	MetaSchool       = "school"
	MetaShortSummary = "short_summary"
)

// Archive record sources.
const (
	SourceSingleFile  = "single_file"
	SourceBatchFile   = "batch_file"
	SourceManualInput = "manual_input"
)

// ArchiveDocument is an immutable result set persisted as one JSON file.
type ArchiveDocument struct {
	Schema  int            `json:"schema"`
	Context string         `json:"context"`
	Title   string         `json:"title"`
	Created string         `json:"created"`
	Meta    map[string]any `json:"meta"`
	Columns []string       `json:"columns"`
	Rows    [][]any        `json:"rows"`
}

// CreatedTime parses Created, returning false when it is absent or malformed.
func (d *ArchiveDocument) CreatedTime() (time.Time, bool) {
	return ParseCreated(d.Created)
}

// ParseCreated parses the ISO local timestamp stored in archive documents.
func ParseCreated(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.999999", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DocumentSummary is the derived, query-ready view of one archive document.
type DocumentSummary struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Created    string    `json:"created"`
	Context    string    `json:"context"`
	ClassName  string    `json:"class_name"`
	Subject    string    `json:"subject"`
	School     string    `json:"school"`
	Title      string    `json:"title"`
	Students   string    `json:"students"`
	SchoolYear string    `json:"school_year"`
	Summary    string    `json:"short_summary,omitempty"`
	ModTime    time.Time `json:"mod_time"`
}

// Field returns a summary column by its listing name, used for sorting.
func (s DocumentSummary) Field(column string) string {
	switch column {
	case "id":
		return s.ID
	case "created", "date":
		return s.Created
	case "context":
		return s.Context
	case "class", "class_name":
		return s.ClassName
	case "subject":
		return s.Subject
	case "school":
		return s.School
	case "title":
		return s.Title
	case "school_year":
		return s.SchoolYear
	case "summary", "short_summary":
		return s.Summary
	}
	return ""
}

// HistoryRow is one appearance of a student across the archive.
type HistoryRow struct {
	Student        string   `json:"student"`
	Date           string   `json:"date"`
	Context        string   `json:"context"`
	ClassName      string   `json:"class_name"`
	Title          string   `json:"title"`
	Points         string   `json:"points"`
	Percent        *float64 `json:"percent,omitempty"`
	PercentDisplay string   `json:"percent_display"`
	Grade          string   `json:"grade"`
	DocumentID     string   `json:"document_id"`
}

// BatchSummary reports the outcome of a batch run.
type BatchSummary struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
	Outputs   []string          `json:"outputs,omitempty"`
	Archived  []string          `json:"archived,omitempty"`
}

// Field returns a history column by name, used for sorting.
func (h HistoryRow) Field(column string) string {
	switch column {
	case "student", "name":
		return h.Student
	case "date", "created":
		return h.Date
	case "context":
		return h.Context
	case "class", "class_name":
		return h.ClassName
	case "title":
		return h.Title
	case "points":
		return h.Points
	case "percent":
		return h.PercentDisplay
	case "grade":
		return h.Grade
	}
	return ""
}
