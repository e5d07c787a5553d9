package config

import "gradecli/pkg/contracts"

// Application constants
const (
	AppName    = "gradecli"
	AppVersion = contracts.Version

	// EnvPrefix namespaces every environment variable, e.g. GRADECLI_LOGGING_LEVEL.
	EnvPrefix = "GRADECLI"

	AppDirName     = "Wyniki5"
	appDirNameUnix = "wyniki5"
	ConfigFileName = "gradecli.yaml"

	// Files and directories under the data directory
	SettingsFileName    = "config.json"
	SubjectTabsFileName = "subject_tabs.json"
	ArchiveDirName      = "archiwum"
	LogsDirName         = "logs"

	DefaultLogFile       = "gradecli.log"
	DefaultMetricsFile   = "gradecli.prom"
	DefaultTraceFile     = "traces.jsonl"
	DefaultDecodeWorkers = 8

	// ResultFileSuffix is appended to the input stem of a result workbook.
	ResultFileSuffix = "_przetworzone.xlsx"
	// ManualResultStem names the result of a manual list read from stdin.
	ManualResultStem = "wyniki_reczne"

	DefaultUITheme = "light"
)
