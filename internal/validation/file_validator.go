package validation

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/files"
	"gradecli/internal/sheets"
)

// FileValidator checks input files and output directories before a run.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateInputDirectory checks that dir exists and is a directory.
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Input directory does not exist",
			slog.String("directory", dir))
		return apperrors.NewNotFoundError("directory " + dir)
	}
	if err != nil {
		return apperrors.NewStorageError("failed to stat directory", err).WithContext("dir", dir)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory",
			slog.String("path", dir))
		return apperrors.NewValidationError("input", dir+" is not a directory")
	}
	return nil
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("failed to create output directory", err).WithContext("dir", dir)
	}

	tmp, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("output directory is not writable", err).WithContext("dir", dir)
	}
	tmp.Close()
	os.Remove(tmp.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return apperrors.NewNotFoundError("file " + path)
	}
	if err != nil {
		return apperrors.NewStorageError("failed to stat file", err).WithContext("path", path)
	}
	if info.IsDir() {
		return apperrors.NewValidationError("input", path+" is a directory, not a file")
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("file is not readable", err).WithContext("path", path)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateSpreadsheet checks that path is a readable spreadsheet of a
// supported format and not an office lock file.
func (v *FileValidator) ValidateSpreadsheet(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	if !sheets.SupportedExtension(path) {
		ext := strings.ToLower(filepath.Ext(path))
		v.logger.Error("Unsupported file type",
			slog.String("file", path),
			slog.String("extension", ext))
		return apperrors.NewFormatError("unsupported file type "+ext, nil).WithContext("path", path)
	}

	if files.IsTempFile(filepath.Base(path)) {
		v.logger.Warn("Skipping temporary office file",
			slog.String("file", path))
		return apperrors.NewValidationError("input", path+" is a temporary office file")
	}
	return nil
}
