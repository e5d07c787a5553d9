// Package config provides configuration management for gradecli: process
// configuration (logging, paths, telemetry), and the user's grading settings
// stored in the application data directory.
//
// # Configuration Sources
//
// Process configuration is layered, lowest precedence first:
//
//	1. Default values
//	2. A YAML file (GRADECLI_CONFIG, ./gradecli.yaml, ./configs/gradecli.yaml
//	   or <data dir>/gradecli.yaml)
//	3. Environment variables, optionally seeded from a .env file
//
// # Environment Variables
//
// All environment variables follow the pattern GRADECLI_<SECTION>_<FIELD>:
//
//	GRADECLI_LOGGING_LEVEL=debug
//	GRADECLI_PATHS_DATA_DIR=/srv/wyniki
//	GRADECLI_TELEMETRY_ENABLE_METRICS=true
//
// # Settings
//
// SettingsStore keeps named contexts (one per school or class) in
// config.json. Each context carries its max points, active scale, custom
// scales and sheet weight profiles. SubjectTabsStore keeps the archive
// subject tab labels in subject_tabs.json.
package config
