package domain

import (
	"encoding/json"
	"fmt"
)

// Canonical column names of a scored table.
const (
	ColumnRank    = "Lp."
	ColumnName    = "Nazwisko"
	ColumnPoints  = "Ilość punktów"
	ColumnPercent = "Procent"
	ColumnGrade   = "Ocena"
)

// DefaultScaleName is the name of the built-in scale profile.
const DefaultScaleName = "Domyślna"

// ScaleBand is one closed percent interval of a grading scale.
type ScaleBand struct {
	Low   float64 `json:"low" yaml:"low" validate:"gte=0,lte=100"`
	High  float64 `json:"high" yaml:"high" validate:"gte=0,lte=100,gtefield=Low"`
	Label string  `json:"label" yaml:"label" validate:"required"`
}

// ScaleRule is an ordered list of bands. The first band with
// Low <= p < High+1 wins; when none matches the last band applies.
type ScaleRule []ScaleBand

// GradingPolicy drives one scoring pass.
type GradingPolicy struct {
	MaxPoints          float64   `json:"max_points" validate:"gt=0"`
	Scale              ScaleRule `json:"scale_rows" validate:"required,min=1,dive"`
	RoundBeforeGrading bool      `json:"round_before"`
}

// WeightProfile maps sheet names to weights. Missing sheets weigh 1.0 and
// weights <= 0 exclude a sheet from the weighted mean.
type WeightProfile map[string]float64

// Weight returns the weight for a sheet.
func (w WeightProfile) Weight(sheet string) float64 {
	if v, ok := w[sheet]; ok {
		return v
	}
	return 1.0
}

// DefaultScale returns a fresh copy of the built-in six-grade scale.
func DefaultScale() ScaleRule {
	return ScaleRule{
		{Low: 97, High: 100, Label: "6 (celujący)"},
		{Low: 90, High: 96, Label: "5 (bardzo dobry)"},
		{Low: 75, High: 89, Label: "4 (dobry)"},
		{Low: 50, High: 74, Label: "3 (dostateczny)"},
		{Low: 35, High: 49, Label: "2 (dopuszczający)"},
		{Low: 0, High: 34, Label: "1 (niedostateczny)"},
	}
}

// ScaleProfiles returns the built-in named scale templates.
func ScaleProfiles() map[string]ScaleRule {
	return map[string]ScaleRule{
		DefaultScaleName:    DefaultScale(),
		"Sprawdzian 25 pkt": DefaultScale(),
		"Kartkówka 10 pkt":  DefaultScale(),
	}
}

// CanonicalTable is a sheet after header detection and column aliasing.
// Cells are kept as read; numeric coercion happens during grading.
type CanonicalTable struct {
	Sheet   string     `json:"sheet"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ColumnIndex returns the position of the named column or -1.
func (t *CanonicalTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AdvisoryKind classifies a non-fatal data warning.
type AdvisoryKind string

const (
	AdvisoryOverMax    AdvisoryKind = "over_max"
	AdvisoryZeroPoints AdvisoryKind = "zero_points"
)

// Advisory is a warning attached to a scored table. It never aborts grading.
type Advisory struct {
	Kind      AdvisoryKind `json:"kind"`
	Name      string       `json:"name"`
	Points    float64      `json:"points"`
	MaxPoints float64      `json:"max_points,omitempty"`
}

// ScoredRow is one graded student.
type ScoredRow struct {
	Rank        int      `json:"rank"`
	Name        string   `json:"name"`
	Points      float64  `json:"points"`
	Percent     float64  `json:"percent"`
	Grade       string   `json:"grade"`
	Passthrough []string `json:"passthrough,omitempty"`
}

// ScoredTable is the output of the grading engine for one sheet.
type ScoredTable struct {
	Sheet       string      `json:"sheet"`
	Columns     []string    `json:"columns"`
	Rows        []ScoredRow `json:"rows"`
	Advisories  []Advisory  `json:"advisories,omitempty"`
	DroppedRows int         `json:"dropped_rows"`
}

// Cells returns the table as rows of cell values in Columns order, ready to
// be archived or exported.
func (t *ScoredTable) Cells() [][]any {
	out := make([][]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]any, 0, len(t.Columns))
		row = append(row, r.Rank, r.Name, r.Points, r.Percent, r.Grade)
		for _, p := range r.Passthrough {
			row = append(row, p)
		}
		out = append(out, row)
	}
	return out
}

// GradeBuckets lists histogram buckets from best to worst.
var GradeBuckets = []string{"6", "5", "4", "3", "2", "1"}

// SheetStats summarizes one set of scored rows.
type SheetStats struct {
	Count        int            `json:"count"`
	MeanPoints   float64        `json:"mean_points"`
	MeanPercent  float64        `json:"mean_percent"`
	MedianPoints float64        `json:"median_points"`
	MinPoints    float64        `json:"min_points"`
	MaxPoints    float64        `json:"max_points"`
	Histogram    map[string]int `json:"histogram"`
}

// AggregateResult combines per-sheet and global statistics.
type AggregateResult struct {
	Sheets       []string              `json:"sheets"`
	PerSheet     map[string]SheetStats `json:"per_sheet"`
	Global       SheetStats            `json:"global"`
	WeightedMean *float64              `json:"weighted_mean,omitempty"`
}

// SheetMeta is the descriptive data found in a META sheet.
type SheetMeta struct {
	Subject   string `json:"subject,omitempty"`
	ClassName string `json:"class_name,omitempty"`
	School    string `json:"school,omitempty"`
}

// MarshalJSON writes a band as [low, high, label], the layout used by stored
// contexts and archive metadata.
func (b ScaleBand) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{b.Low, b.High, b.Label})
}

// UnmarshalJSON accepts both [low, high, label] and {"low", "high", "label"}.
func (b *ScaleBand) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err == nil {
		if len(tuple) != 3 {
			return fmt.Errorf("scale band: want 3 elements, got %d", len(tuple))
		}
		if err := json.Unmarshal(tuple[0], &b.Low); err != nil {
			return fmt.Errorf("scale band low: %w", err)
		}
		if err := json.Unmarshal(tuple[1], &b.High); err != nil {
			return fmt.Errorf("scale band high: %w", err)
		}
		if err := json.Unmarshal(tuple[2], &b.Label); err != nil {
			return fmt.Errorf("scale band label: %w", err)
		}
		return nil
	}
	type plain ScaleBand
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = ScaleBand(p)
	return nil
}
