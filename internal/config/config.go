package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"gradecli/pkg/contracts/domain"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Grading   GradingConfig   `yaml:"grading" envconfig:"GRADING"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system locations. Empty values resolve under the
// application data directory.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ArchiveDir string `yaml:"archive_dir" envconfig:"ARCHIVE_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	OutputDir  string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
}

// TelemetryConfig controls metrics and trace export.
type TelemetryConfig struct {
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	MetricsFile   string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	EnableTracing bool   `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	TraceFile     string `yaml:"trace_file" envconfig:"TRACE_FILE"`
}

// GradingConfig holds defaults for scoring runs.
type GradingConfig struct {
	DefaultContext string `yaml:"default_context" envconfig:"DEFAULT_CONTEXT" validate:"required"`
	DecodeWorkers  int    `yaml:"decode_workers" envconfig:"DECODE_WORKERS" validate:"gte=1,lte=64"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Load reads configuration from defaults, the config file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded first; variables already set are not overridden.
func Load() (*Config, error) {
	return LoadFile(configFilePath())
}

// LoadFile is Load with an explicit config file. An empty path skips the
// file layer.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := Default()
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays a YAML file on cfg. Keys absent from the file keep
// their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate normalizes and checks the configuration
func (c *Config) validate() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Output = strings.ToLower(strings.TrimSpace(c.Logging.Output))
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}
	if c.Grading.DecodeWorkers == 0 {
		c.Grading.DecodeWorkers = DefaultDecodeWorkers
	}

	validateOnce.Do(func() {
		validate = validator.New()
	})
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// configFilePath returns the path to the config file, or "" when none exists
func configFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}

	locations := []string{ConfigFileName, filepath.Join("configs", ConfigFileName)}
	if dir, err := AppDataDir(); err == nil {
		locations = append(locations, filepath.Join(dir, ConfigFileName))
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "file",
			FilePath: DefaultLogFile,
		},
		Telemetry: TelemetryConfig{
			MetricsFile: DefaultMetricsFile,
			TraceFile:   DefaultTraceFile,
		},
		Grading: GradingConfig{
			DefaultContext: domain.DefaultContextName,
			DecodeWorkers:  DefaultDecodeWorkers,
		},
	}
}
