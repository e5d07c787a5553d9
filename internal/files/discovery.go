package files

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gradecli/internal/config"
	apperrors "gradecli/internal/errors"
	"gradecli/internal/sheets"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery finds input spreadsheets.
type Discovery struct {
	logger *slog.Logger
	suffix string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		logger: logger.With(slog.String("component", "discovery")),
		suffix: config.ResultFileSuffix,
	}
}

// IsTempFile reports whether name is an office lock or temporary file.
func IsTempFile(name string) bool {
	return strings.HasPrefix(name, "~") || strings.HasPrefix(name, ".~lock")
}

// IsResultFile reports whether name looks like a workbook this tool wrote.
func (d *Discovery) IsResultFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(d.suffix))
}

// Accept reports whether name should be scored: a supported spreadsheet
// that is neither a temp file nor a previous result.
func (d *Discovery) Accept(name string) bool {
	return sheets.SupportedExtension(name) && !IsTempFile(name) && !d.IsResultFile(name)
}

// FindInputFiles lists scorable spreadsheets directly inside dir, sorted by
// name.
func (d *Discovery) FindInputFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError("directory " + dir)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read directory", err).WithContext("dir", dir)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !d.Accept(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})

	d.logger.Debug("Input files discovered",
		slog.String("dir", dir),
		slog.Int("count", len(files)))
	return files, nil
}

// ExpandInputs turns command-line arguments into a list of files. Files are
// kept as given; directories contribute their scorable spreadsheets.
// Duplicates are dropped, first occurrence wins.
func (d *Discovery) ExpandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		key := filepath.Clean(p)
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			// Missing files are reported by the run itself.
			add(arg)
			continue
		}
		found, err := d.FindInputFiles(arg)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f.Path)
		}
	}
	return out, nil
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}

	return latest, true
}
