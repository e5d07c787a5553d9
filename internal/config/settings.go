package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "gradecli/internal/errors"
	"gradecli/pkg/contracts/domain"
)

// Settings is the persisted grading setup: named contexts plus the current
// selection and descriptive defaults.
type Settings struct {
	Contexts       map[string]*domain.ContextSettings `json:"contexts"`
	CurrentContext string                             `json:"current_context"`
	UITheme        string                             `json:"ui_theme"`
	DefaultSchool  string                             `json:"default_school,omitempty"`
	DefaultSubject string                             `json:"default_subject,omitempty"`
	DefaultClass   string                             `json:"default_class,omitempty"`
}

// NewSettings returns settings holding a single default context.
func NewSettings(current string) *Settings {
	s := &Settings{CurrentContext: current}
	s.ensure()
	return s
}

// ensure fills every structural default: a context map, a current context
// that exists, the theme, and empty maps inside each context.
func (s *Settings) ensure() {
	if s.Contexts == nil {
		s.Contexts = make(map[string]*domain.ContextSettings)
	}
	if s.CurrentContext == "" {
		s.CurrentContext = domain.DefaultContextName
	}
	if s.UITheme == "" {
		s.UITheme = DefaultUITheme
	}
	for name, c := range s.Contexts {
		if c == nil {
			d := domain.NewContextSettings()
			s.Contexts[name] = &d
			continue
		}
		fillContext(c)
	}
	if _, ok := s.Contexts[s.CurrentContext]; !ok {
		d := domain.NewContextSettings()
		s.Contexts[s.CurrentContext] = &d
	}
}

func fillContext(c *domain.ContextSettings) {
	if c.CustomScales == nil {
		c.CustomScales = map[string]domain.ScaleRule{}
	}
	if c.WeightsBySheet == nil {
		c.WeightsBySheet = domain.WeightProfile{}
	}
	if c.WeightProfiles == nil {
		c.WeightProfiles = map[string]domain.WeightProfile{}
	}
	if c.ScaleActive == "" {
		c.ScaleActive = domain.DefaultScaleName
	}
	if c.MaxPoints == 0 {
		c.MaxPoints = domain.DefaultMaxPoints
	}
}

// Names returns the context names, sorted.
func (s *Settings) Names() []string {
	names := make([]string, 0, len(s.Contexts))
	for n := range s.Contexts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Context returns the named context, creating it with defaults when missing.
// An empty name means the current context.
func (s *Settings) Context(name string) *domain.ContextSettings {
	s.ensure()
	if name == "" {
		name = s.CurrentContext
	}
	c, ok := s.Contexts[name]
	if !ok {
		d := domain.NewContextSettings()
		c = &d
		s.Contexts[name] = c
	}
	return c
}

// Current returns the current context.
func (s *Settings) Current() *domain.ContextSettings {
	return s.Context("")
}

// Switch makes name current, creating the context when missing.
func (s *Settings) Switch(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.NewValidationError("context", "name must not be empty")
	}
	s.Context(name)
	s.CurrentContext = name
	return nil
}

// Create adds a new context with defaults and makes it current.
func (s *Settings) Create(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.NewValidationError("context", "name must not be empty")
	}
	s.ensure()
	if _, ok := s.Contexts[name]; ok {
		return apperrors.NewConflictError(fmt.Sprintf("context %q already exists", name))
	}
	d := domain.NewContextSettings()
	s.Contexts[name] = &d
	s.CurrentContext = name
	return nil
}

// Rename moves a context to a new name. The current selection follows it.
func (s *Settings) Rename(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return apperrors.NewValidationError("context", "name must not be empty")
	}
	if oldName == newName {
		return nil
	}
	s.ensure()
	c, ok := s.Contexts[oldName]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("context %q", oldName))
	}
	if _, exists := s.Contexts[newName]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("context %q already exists", newName))
	}
	delete(s.Contexts, oldName)
	s.Contexts[newName] = c
	if s.CurrentContext == oldName {
		s.CurrentContext = newName
	}
	return nil
}

// Delete removes a context. At least one context must remain; when the
// current one is deleted the first remaining name (sorted) becomes current.
// Deleting a missing context is a no-op.
func (s *Settings) Delete(name string) error {
	s.ensure()
	if _, ok := s.Contexts[name]; !ok {
		return nil
	}
	if len(s.Contexts) == 1 {
		return apperrors.NewValidationError("context", "at least one context must remain")
	}
	delete(s.Contexts, name)
	if s.CurrentContext == name {
		s.CurrentContext = s.Names()[0]
	}
	return nil
}

// ScaleProfileNames lists built-in and custom scale names of a context.
func ScaleProfileNames(c *domain.ContextSettings) []string {
	seen := map[string]struct{}{}
	for n := range domain.ScaleProfiles() {
		seen[n] = struct{}{}
	}
	for n := range c.CustomScales {
		seen[n] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SelectScale makes a named custom or built-in scale the active one.
func SelectScale(c *domain.ContextSettings, name string) error {
	rows, ok := c.CustomScales[name]
	if !ok || len(rows) == 0 {
		rows, ok = domain.ScaleProfiles()[name]
	}
	if !ok || len(rows) == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("scale profile %q", name))
	}
	c.ActiveScaleRows = append(domain.ScaleRule(nil), rows...)
	c.ScaleActive = name
	return nil
}

// SaveCustomScale stores rows under name and activates them.
func SaveCustomScale(c *domain.ContextSettings, name string, rows domain.ScaleRule) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.NewValidationError("scale", "name must not be empty")
	}
	if c.CustomScales == nil {
		c.CustomScales = map[string]domain.ScaleRule{}
	}
	c.CustomScales[name] = append(domain.ScaleRule(nil), rows...)
	c.ActiveScaleRows = append(domain.ScaleRule(nil), rows...)
	c.ScaleActive = name
	return nil
}

// SaveWeightProfile stores a named sheet-weight profile.
func SaveWeightProfile(c *domain.ContextSettings, name string, weights domain.WeightProfile) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.NewValidationError("weight_profile", "name must not be empty")
	}
	if c.WeightProfiles == nil {
		c.WeightProfiles = map[string]domain.WeightProfile{}
	}
	c.WeightProfiles[name] = copyWeights(weights)
	return nil
}

// ActivateWeightProfile makes a stored profile active and copies its
// weights into the sheet weights used for scoring.
func ActivateWeightProfile(c *domain.ContextSettings, name string) error {
	w, ok := c.WeightProfiles[name]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("weight profile %q", name))
	}
	c.ActiveWeightProfile = name
	c.WeightsBySheet = copyWeights(w)
	return nil
}

// DeleteWeightProfile removes a profile, clearing the active marker if it
// pointed at it. The current sheet weights are kept.
func DeleteWeightProfile(c *domain.ContextSettings, name string) {
	delete(c.WeightProfiles, name)
	if c.ActiveWeightProfile == name {
		c.ActiveWeightProfile = ""
	}
}

func copyWeights(w domain.WeightProfile) domain.WeightProfile {
	out := make(domain.WeightProfile, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// SettingsStore reads and writes Settings as a JSON file.
type SettingsStore struct {
	path           string
	defaultContext string
	logger         *slog.Logger
	mu             sync.Mutex
}

// NewSettingsStore creates a store for the given file.
func NewSettingsStore(path, defaultContext string, logger *slog.Logger) *SettingsStore {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultContext == "" {
		defaultContext = domain.DefaultContextName
	}
	return &SettingsStore{
		path:           path,
		defaultContext: defaultContext,
		logger:         logger.With(slog.String("component", "settings")),
	}
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads the settings. A missing file yields defaults. An unreadable
// file also yields defaults, with a warning, so a damaged settings file never
// blocks scoring.
func (s *SettingsStore) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewSettings(s.defaultContext), nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read settings", err).WithContext("path", s.path)
	}

	var st Settings
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("settings file is corrupt, using defaults",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return NewSettings(s.defaultContext), nil
	}
	if st.CurrentContext == "" {
		st.CurrentContext = s.defaultContext
	}
	st.ensure()
	return &st, nil
}

// Save writes the settings atomically.
func (s *SettingsStore) Save(st *Settings) error {
	st.ensure()
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, st)
}

// Update loads, applies fn and saves when fn succeeds.
func (s *SettingsStore) Update(fn func(*Settings) error) (*Settings, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	if err := s.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}

// SubjectTabsStore reads and writes the subject tab configuration.
type SubjectTabsStore struct {
	path   string
	logger *slog.Logger
}

// NewSubjectTabsStore creates a store for the given file.
func NewSubjectTabsStore(path string, logger *slog.Logger) *SubjectTabsStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubjectTabsStore{path: path, logger: logger.With(slog.String("component", "subject_tabs"))}
}

// Load returns the tabs. Files written without the "tabs" wrapper are
// accepted; missing or unreadable files yield an empty configuration.
func (s *SubjectTabsStore) Load() *domain.SubjectTabs {
	empty := &domain.SubjectTabs{Tabs: map[string]domain.SubjectTab{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read subject tabs", slog.String("error", err.Error()))
		}
		return empty
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("subject tabs file is corrupt", slog.String("error", err.Error()))
		return empty
	}
	body, wrapped := raw["tabs"]
	if !wrapped {
		body = data
	}
	tabs := map[string]domain.SubjectTab{}
	if err := json.Unmarshal(body, &tabs); err != nil {
		s.logger.Warn("subject tabs file is corrupt", slog.String("error", err.Error()))
		return empty
	}
	return &domain.SubjectTabs{Tabs: tabs}
}

// Save writes the tabs atomically.
func (s *SubjectTabsStore) Save(tabs *domain.SubjectTabs) error {
	if tabs.Tabs == nil {
		tabs.Tabs = map[string]domain.SubjectTab{}
	}
	return writeJSON(s.path, tabs)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("failed to encode settings", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewStorageError("failed to create settings directory", err).WithContext("dir", dir)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return apperrors.NewStorageError("failed to create temp file", err).WithContext("dir", dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to write settings", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to write settings", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to replace settings", err).WithContext("path", path)
	}
	return nil
}
