package domain

import "strings"

// DefaultContextName is the context created when no settings exist.
const DefaultContextName = "Domyślny"

// DefaultMaxPoints is the max points of a freshly created context.
const DefaultMaxPoints = 60.0

// ContextSettings is the per-school (or per-class) grading setup.
type ContextSettings struct {
	ActiveScaleRows         ScaleRule                `json:"active_scale_rows"`
	ScaleActive             string                   `json:"scale_active"`
	CustomScales            map[string]ScaleRule     `json:"custom_scales"`
	MaxPoints               float64                  `json:"max_points"`
	OpenAfter               bool                     `json:"open_after"`
	LastFile                string                   `json:"last_file"`
	LastOutputDir           string                   `json:"last_output_dir"`
	UseWeightedMean         bool                     `json:"use_weighted_mean"`
	WeightsBySheet          WeightProfile            `json:"weights_by_sheet"`
	WeightProfiles          map[string]WeightProfile `json:"weight_profiles"`
	ActiveWeightProfile     string                   `json:"active_weight_profile"`
	RoundPercentBeforeGrade bool                     `json:"round_percent_before_grade"`
}

// NewContextSettings returns the defaults of a new context.
func NewContextSettings() ContextSettings {
	return ContextSettings{
		ScaleActive:    DefaultScaleName,
		CustomScales:   map[string]ScaleRule{},
		MaxPoints:      DefaultMaxPoints,
		OpenAfter:      true,
		WeightsBySheet: WeightProfile{},
		WeightProfiles: map[string]WeightProfile{},
	}
}

// ActiveScale resolves the scale in effect: explicit active rows first, then
// a custom scale with the active name, then a built-in profile, then the
// default scale.
func (c ContextSettings) ActiveScale() ScaleRule {
	if len(c.ActiveScaleRows) > 0 {
		return append(ScaleRule(nil), c.ActiveScaleRows...)
	}
	name := c.ScaleActive
	if name == "" {
		name = DefaultScaleName
	}
	if custom, ok := c.CustomScales[name]; ok && len(custom) > 0 {
		return append(ScaleRule(nil), custom...)
	}
	if builtin, ok := ScaleProfiles()[name]; ok {
		return builtin
	}
	return DefaultScale()
}

// Policy builds the grading policy described by the context.
func (c ContextSettings) Policy() GradingPolicy {
	return GradingPolicy{
		MaxPoints:          c.MaxPoints,
		Scale:              c.ActiveScale(),
		RoundBeforeGrading: c.RoundPercentBeforeGrade,
	}
}

// SubjectTab is the display setting of one subject tab.
type SubjectTab struct {
	Label   string `json:"label"`
	Visible bool   `json:"visible"`
}

// SubjectTabs maps subject keys, as stored in archive metadata, to tabs.
type SubjectTabs struct {
	Tabs map[string]SubjectTab `json:"tabs"`
}

// DisplayLabel returns the tab label for a subject key, falling back to the
// key itself.
func (s *SubjectTabs) DisplayLabel(key string) string {
	if t, ok := s.Tabs[key]; ok {
		if l := strings.TrimSpace(t.Label); l != "" {
			return l
		}
	}
	return key
}

// SubjectForLabel finds the subject key shown under a tab label.
func (s *SubjectTabs) SubjectForLabel(label string) (string, bool) {
	label = strings.TrimSpace(label)
	for key := range s.Tabs {
		if s.DisplayLabel(key) == label {
			return key, true
		}
	}
	return "", false
}
