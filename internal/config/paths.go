package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	DataDir    string
	ArchiveDir string
	LogsDir    string
	// OutputDir is where result workbooks go. Empty means next to the input.
	OutputDir string

	SettingsFile    string
	SubjectTabsFile string
	LogFile         string
	MetricsFile     string
	TraceFile       string
}

// AppDataDir returns the per-user application directory: %APPDATA%\Wyniki5
// when APPDATA is set (Windows), otherwise ~/.config/wyniki5.
func AppDataDir() (string, error) {
	if v := os.Getenv("APPDATA"); v != "" {
		return filepath.Join(v, AppDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", appDirNameUnix), nil
}

// GetPaths resolves every location the application uses from cfg.
// Relative file names are placed in their owning directory.
func GetPaths(cfg *Config) (*Paths, error) {
	dataDir := cfg.Paths.DataDir
	if dataDir == "" {
		dir, err := AppDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}
	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	archiveDir := orDefault(cfg.Paths.ArchiveDir, filepath.Join(dataDir, ArchiveDirName))
	logsDir := orDefault(cfg.Paths.LogsDir, filepath.Join(dataDir, LogsDirName))

	return &Paths{
		DataDir:         dataDir,
		ArchiveDir:      archiveDir,
		LogsDir:         logsDir,
		OutputDir:       cfg.Paths.OutputDir,
		SettingsFile:    filepath.Join(dataDir, SettingsFileName),
		SubjectTabsFile: filepath.Join(dataDir, SubjectTabsFileName),
		LogFile:         inDir(logsDir, cfg.Logging.FilePath),
		MetricsFile:     inDir(dataDir, cfg.Telemetry.MetricsFile),
		TraceFile:       inDir(logsDir, cfg.Telemetry.TraceFile),
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func inDir(dir, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{p.DataDir, p.ArchiveDir, p.LogsDir}
	if p.OutputDir != "" {
		directories = append(directories, p.OutputDir)
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogPathResolution logs the resolved locations at debug level.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Path resolution summary",
		slog.Group("directories",
			slog.String("data", p.DataDir),
			slog.String("archive", p.ArchiveDir),
			slog.String("logs", p.LogsDir),
			slog.String("output", p.OutputDir),
		),
		slog.Group("files",
			slog.String("settings", p.SettingsFile),
			slog.String("subject_tabs", p.SubjectTabsFile),
			slog.String("log", p.LogFile),
			slog.String("metrics", p.MetricsFile),
		))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
