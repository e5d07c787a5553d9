package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gradecli/internal/archive"
	"gradecli/internal/config"
	apperrors "gradecli/internal/errors"
	"gradecli/internal/files"
	"gradecli/internal/infrastructure"
	"gradecli/internal/operations"
	"gradecli/internal/query"
	"gradecli/internal/validation"
	"gradecli/pkg/contracts/domain"
)

const shutdownTimeout = 5 * time.Second

// app holds the state shared by commands during one invocation.
type app struct {
	flags *rootFlags

	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	telemetry *infrastructure.Telemetry
	settings  *config.SettingsStore
	tabs      *config.SubjectTabsStore
	store     *archive.Store
	index     *query.CachedIndex
	discovery *files.Discovery
	validator *validation.FileValidator

	out    io.Writer
	errOut io.Writer
	opened bool
}

// open loads configuration and builds the stores for one command run.
func (a *app) open(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()

	var (
		cfg *config.Config
		err error
	)
	if a.flags.configFile != "" {
		cfg, err = config.LoadFile(a.flags.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return apperrors.NewConfigError("failed to load configuration", err)
	}
	if a.flags.verbose {
		cfg.Logging.Level = "debug"
	}

	paths, err := config.GetPaths(cfg)
	if err != nil {
		return apperrors.NewConfigError("failed to resolve paths", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return apperrors.NewStorageError("failed to create application directories", err)
	}

	logCfg := cfg.Logging
	logCfg.FilePath = paths.LogFile
	logger, err := infrastructure.NewLogger(logCfg)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize logger", err)
	}
	a.opened = true
	paths.LogPathResolution(logger)

	tel, err := infrastructure.InitializeTelemetry(infrastructure.TelemetryOptionsFrom(cfg.Telemetry, paths), logger)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize telemetry", err)
	}

	store, err := archive.NewStore(paths.ArchiveDir, infrastructure.WithComponent(logger, "archive"), archive.WithDecodeWorkers(cfg.Grading.DecodeWorkers))
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.paths = paths
	a.logger = logger.With(slog.String("command", cmd.CommandPath()))
	a.telemetry = tel
	a.settings = config.NewSettingsStore(paths.SettingsFile, cfg.Grading.DefaultContext, infrastructure.WithComponent(logger, "settings"))
	a.tabs = config.NewSubjectTabsStore(paths.SubjectTabsFile, infrastructure.WithComponent(logger, "settings"))
	a.store = store
	a.index = query.NewCachedIndex(store, infrastructure.WithComponent(logger, "query"))
	a.discovery = files.NewDiscovery(infrastructure.WithComponent(logger, "files"))
	a.validator = validation.NewFileValidator(infrastructure.WithComponent(logger, "validation"))

	a.logger.Debug("Command started", slog.String("context_override", a.flags.contextName))
	return nil
}

// close flushes telemetry and releases the log file. It is safe to call
// more than once.
func (a *app) close(ctx context.Context) error {
	if !a.opened {
		return nil
	}
	a.opened = false

	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// loadSettings returns the settings and the name of the context in effect:
// the --context flag, or the current context.
func (a *app) loadSettings() (*config.Settings, string, error) {
	st, err := a.settings.Load()
	if err != nil {
		return nil, "", err
	}
	name := strings.TrimSpace(a.flags.contextName)
	if name == "" {
		return st, st.CurrentContext, nil
	}
	if _, ok := st.Contexts[name]; !ok {
		return nil, "", apperrors.NewNotFoundError(fmt.Sprintf("context %q", name))
	}
	return st, name, nil
}

func (a *app) runner() *operations.Runner {
	return operations.NewRunner(a.index, a.logger,
		operations.WithMetrics(a.telemetry.Metrics),
		operations.WithTracer(a.telemetry.Tracer))
}

// archiveIndex returns the query index, reporting skipped corrupt files.
func (a *app) archiveIndex(ctx context.Context) (*query.Index, error) {
	idx, err := a.index.Index(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Corrupt > 0 {
		a.telemetry.Metrics.RecordCorruptDocuments(ctx, idx.Corrupt)
		a.logger.WarnContext(ctx, "Corrupt archive documents skipped", slog.Int("count", idx.Corrupt))
		fmt.Fprintf(a.errOut, "Warning: %d unreadable archive file(s) skipped\n", idx.Corrupt)
	}
	return idx, nil
}

// rememberRun stores the last input file and output directory in the
// context.
func (a *app) rememberRun(contextName, inputPath, outputPath string) {
	_, err := a.settings.Update(func(st *config.Settings) error {
		c := st.Context(contextName)
		c.LastFile = inputPath
		c.LastOutputDir = filepath.Dir(outputPath)
		return nil
	})
	if err != nil {
		infrastructure.WithError(a.logger, err).Warn("Failed to save last run")
	}
}

// syncSubjects adds tabs for newly seen subjects.
func (a *app) syncSubjects(subjects ...string) {
	var clean []string
	for _, s := range subjects {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return
	}
	tabs := a.tabs.Load()
	if !query.SyncSubjectTabs(tabs, clean) {
		return
	}
	if err := a.tabs.Save(tabs); err != nil {
		infrastructure.WithError(a.logger, err).Warn("Failed to save subject tabs")
	}
}

// defaultMeta returns the descriptive defaults kept in settings.
func defaultMeta(st *config.Settings) domain.SheetMeta {
	return domain.SheetMeta{
		Subject:   st.DefaultSubject,
		ClassName: st.DefaultClass,
		School:    st.DefaultSchool,
	}
}
