package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gradecli/internal/config"
	"gradecli/pkg/contracts"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configFile  string
	contextName string
	verbose     bool
	jsonOutput  bool
}

// NewRootCommand builds the command tree. Each call returns an independent
// tree, so tests can run commands side by side.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *app) {
	flags := &rootFlags{}
	a := &app{flags: flags}

	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Score test results and keep an archive of graded classes",
		Long: `gradecli converts raw test points into percentages and grades.

It reads spreadsheets (.xlsx, .xls, .ods, .csv), grades every sheet with the
scale of the current context, writes a "<name>_przetworzone.xlsx" result
workbook and stores the first scored sheet in the archive.

Examples:
  gradecli score klasa3a.xlsx
  gradecli batch wyniki/ --out-dir przetworzone/
  gradecli archive list --subject Matematyka --sort date --desc
  gradecli history Kowalski --csv kowalski.csv
  gradecli context create "SP Górzno"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default: "+config.ConfigFileName+" in the working or data directory)")
	pf.StringVar(&flags.contextName, "context", "", "grading context to use instead of the current one")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&flags.jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		newScoreCommand(a),
		newBatchCommand(a),
		newArchiveCommand(a),
		newHistoryCommand(a),
		newContextCommand(a),
		newSubjectsCommand(a),
		newVersionCommand(),
	)
	return rootCmd, a
}

// Execute runs the CLI with interrupt handling. Errors are printed to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, a := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	// post-run hooks are skipped when a command fails
	a.close(ctx)
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		return err
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// no application state needed
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return printJSON(cmd.OutOrStdout(), contracts.GetVersionInfo())
			}
			line := contracts.GetVersionString()
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				line = contracts.GetFullVersionString()
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), line)
			return err
		},
	}
}
