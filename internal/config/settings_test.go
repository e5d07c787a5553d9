package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/shared/testutil"
	"gradecli/pkg/contracts/domain"
)

func newSettingsStore(t *testing.T) *SettingsStore {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewSettingsStore(filepath.Join(t.TempDir(), SettingsFileName), "", logger)
}

func TestSettingsStore_LoadMissingGivesDefaults(t *testing.T) {
	st, err := newSettingsStore(t).Load()
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultContextName, st.CurrentContext)
	assert.Equal(t, "light", st.UITheme)
	require.Contains(t, st.Contexts, domain.DefaultContextName)

	c := st.Current()
	assert.Equal(t, 60.0, c.MaxPoints)
	assert.Equal(t, "Domyślna", c.ScaleActive)
	assert.True(t, c.OpenAfter)
	assert.Nil(t, c.ActiveScaleRows)
	assert.NotNil(t, c.WeightProfiles)
	assert.Equal(t, domain.DefaultScale(), c.ActiveScale())
}

func TestSettingsStore_CorruptFileGivesDefaults(t *testing.T) {
	s := newSettingsStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{broken"), 0o644))

	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{domain.DefaultContextName}, st.Names())
}

func TestSettingsStore_ReadsStoredLayout(t *testing.T) {
	s := newSettingsStore(t)
	raw := `{
  "contexts": {
    "SP Górzno": {
      "active_scale_rows": [[95, 100, "6"], [0, 94, "1"]],
      "scale_active": "Moja",
      "max_points": 25,
      "weights_by_sheet": {"3a": 2}
    }
  },
  "current_context": "SP Górzno",
  "ui_theme": "dark"
}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(raw), 0o644))

	st, err := s.Load()
	require.NoError(t, err)

	c := st.Current()
	assert.Equal(t, 25.0, c.MaxPoints)
	assert.Equal(t, "dark", st.UITheme)
	assert.Equal(t, domain.ScaleRule{{Low: 95, High: 100, Label: "6"}, {Low: 0, High: 94, Label: "1"}}, c.ActiveScale())
	assert.Equal(t, 2.0, c.WeightsBySheet.Weight("3a"))
	assert.Equal(t, 1.0, c.WeightsBySheet.Weight("3b"))
	assert.NotNil(t, c.CustomScales, "missing maps are filled in")

	policy := c.Policy()
	assert.Equal(t, 25.0, policy.MaxPoints)
	assert.False(t, policy.RoundBeforeGrading)
}

func TestSettingsStore_SaveRoundTrip(t *testing.T) {
	s := newSettingsStore(t)

	_, err := s.Update(func(st *Settings) error {
		require.NoError(t, st.Create("LO1"))
		c := st.Current()
		c.MaxPoints = 40
		return SaveCustomScale(c, "Ostra", domain.ScaleRule{{Low: 99, High: 100, Label: "6"}, {Low: 0, High: 98, Label: "1"}})
	})
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	ctx := generic["contexts"].(map[string]any)["LO1"].(map[string]any)
	assert.Equal(t, []any{99.0, 100.0, "6"}, ctx["active_scale_rows"].([]any)[0], "bands are stored as tuples")

	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "LO1", st.CurrentContext)
	assert.Equal(t, 40.0, st.Current().MaxPoints)
	assert.Equal(t, "Ostra", st.Current().ScaleActive)
	assert.Len(t, st.Current().CustomScales["Ostra"], 2)
}

func TestSettings_ContextLifecycle(t *testing.T) {
	st := NewSettings("")

	require.NoError(t, st.Create("A"))
	assert.Equal(t, "A", st.CurrentContext)

	err := st.Create("A")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConflict))
	assert.True(t, apperrors.IsType(st.Create("  "), apperrors.ErrTypeValidation))

	require.NoError(t, st.Switch("B"))
	assert.Equal(t, "B", st.CurrentContext)
	assert.Contains(t, st.Contexts, "B", "switching creates a missing context")

	assert.True(t, apperrors.IsType(st.Rename("A", "B"), apperrors.ErrTypeConflict))
	assert.True(t, apperrors.IsType(st.Rename("Z", "Y"), apperrors.ErrTypeNotFound))
	require.NoError(t, st.Rename("B", "C"))
	assert.Equal(t, "C", st.CurrentContext)
	require.NoError(t, st.Rename("C", "C"))

	require.NoError(t, st.Delete("C"))
	assert.Equal(t, []string{"A", domain.DefaultContextName}, st.Names())
	assert.Equal(t, "A", st.CurrentContext)

	require.NoError(t, st.Delete("missing"))
	require.NoError(t, st.Delete(domain.DefaultContextName))
	err = st.Delete("A")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.Equal(t, []string{"A"}, st.Names())
}

func TestScaleSelection(t *testing.T) {
	c := domain.NewContextSettings()

	assert.Contains(t, ScaleProfileNames(&c), "Kartkówka 10 pkt")

	require.NoError(t, SelectScale(&c, "Sprawdzian 25 pkt"))
	assert.Equal(t, "Sprawdzian 25 pkt", c.ScaleActive)
	assert.Len(t, c.ActiveScaleRows, 6)

	assert.True(t, apperrors.IsType(SelectScale(&c, "Nieznana"), apperrors.ErrTypeNotFound))

	custom := domain.ScaleRule{{Low: 50, High: 100, Label: "zal"}, {Low: 0, High: 49, Label: "nzal"}}
	require.NoError(t, SaveCustomScale(&c, "Zaliczenie", custom))
	assert.Contains(t, ScaleProfileNames(&c), "Zaliczenie")

	c.ActiveScaleRows = nil
	assert.Equal(t, custom, c.ActiveScale(), "custom scale resolved by name")
	c.ScaleActive = "Kartkówka 10 pkt"
	assert.Equal(t, domain.DefaultScale(), c.ActiveScale())
	c.ScaleActive = "gone"
	assert.Equal(t, domain.DefaultScale(), c.ActiveScale())
}

func TestWeightProfiles(t *testing.T) {
	c := domain.NewContextSettings()

	require.NoError(t, SaveWeightProfile(&c, "semestr", domain.WeightProfile{"3a": 2, "3b": 0}))
	assert.True(t, apperrors.IsType(SaveWeightProfile(&c, "", nil), apperrors.ErrTypeValidation))
	assert.True(t, apperrors.IsType(ActivateWeightProfile(&c, "nope"), apperrors.ErrTypeNotFound))

	require.NoError(t, ActivateWeightProfile(&c, "semestr"))
	assert.Equal(t, "semestr", c.ActiveWeightProfile)
	assert.Equal(t, domain.WeightProfile{"3a": 2, "3b": 0}, c.WeightsBySheet)

	c.WeightsBySheet["3a"] = 5
	assert.Equal(t, 2.0, c.WeightProfiles["semestr"]["3a"], "active weights are a copy")

	DeleteWeightProfile(&c, "semestr")
	assert.Empty(t, c.ActiveWeightProfile)
	assert.NotContains(t, c.WeightProfiles, "semestr")
	assert.Equal(t, 5.0, c.WeightsBySheet["3a"])
}

func TestSubjectTabsStore(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		body string
		want map[string]domain.SubjectTab
	}{
		{"missing file", "", map[string]domain.SubjectTab{}},
		{"wrapped", `{"tabs": {"WOS": {"label": "Wiedza", "visible": false}}}`,
			map[string]domain.SubjectTab{"WOS": {Label: "Wiedza", Visible: false}}},
		{"legacy unwrapped", `{"Historia": {"label": "Historia", "visible": true}}`,
			map[string]domain.SubjectTab{"Historia": {Label: "Historia", Visible: true}}},
		{"corrupt", `{oops`, map[string]domain.SubjectTab{}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if tt.body != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			}
			got := NewSubjectTabsStore(path, logger).Load()
			assert.Equal(t, tt.want, got.Tabs, "case %d", i)
		})
	}

	t.Run("save wraps tabs", func(t *testing.T) {
		path := filepath.Join(dir, "saved.json")
		s := NewSubjectTabsStore(path, logger)
		require.NoError(t, s.Save(&domain.SubjectTabs{Tabs: map[string]domain.SubjectTab{"Fizyka": {Label: "Fizyka", Visible: true}}}))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, `{"tabs": {"Fizyka": {"label": "Fizyka", "visible": true}}}`, string(data))
		assert.Equal(t, "Fizyka", s.Load().DisplayLabel("Fizyka"))
	})
}
