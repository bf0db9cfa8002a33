package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/hackquest/hackquest/pkg/logging"
	"github.com/hackquest/hackquest/pkg/metrics"
	"github.com/hackquest/hackquest/pkg/retry"
	"github.com/hackquest/hackquest/pkg/teams"
)

// envPrefix selects the environment variables that override the file
const envPrefix = "HACKQUEST_"

// Config holds the hackquest configuration
type Config struct {
	Store   StoreConfig   `koanf:"store"`
	Retry   RetryConfig   `koanf:"retry"`
	Metrics MetricsConfig `koanf:"metrics"`
	Logging LoggingConfig `koanf:"logging"`
}

// StoreConfig selects and configures the team row store
type StoreConfig struct {
	Backend           string `koanf:"backend"`   // memory, xlsx or sheets
	XLSXPath          string `koanf:"xlsx_path"` // workbook for the xlsx backend
	SpreadsheetID     string `koanf:"spreadsheet_id"`
	SheetName         string `koanf:"sheet_name"`
	CredentialsFile   string `koanf:"credentials_file"` // service account key for the sheets backend
	RequestsPerMinute int    `koanf:"requests_per_minute"`
}

// RetryConfig configures throttling backoff
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	Timeout     time.Duration `koanf:"timeout"` // per attempt
}

// MetricsConfig selects the analytics sink
type MetricsConfig struct {
	Sink           string        `koanf:"sink"` // none, datadog or prometheus
	DatadogAPIKey  string        `koanf:"datadog_api_key"`
	DatadogURL     string        `koanf:"datadog_url"`
	PushgatewayURL string        `koanf:"pushgateway_url"`
	Timeout        time.Duration `koanf:"timeout"`
}

// LoggingConfig configures the application and access logs
type LoggingConfig struct {
	Level      string `koanf:"level"`
	Path       string `koanf:"path"`        // empty logs to stderr
	AccessPath string `koanf:"access_path"` // empty discards access records
	MaxSize    int64  `koanf:"max_size"`    // bytes before rotation
}

// LoadConfig reads the YAML file at path, when given, then applies
// HACKQUEST_* environment overrides and defaults. Environment variables map
// on the first underscore after the prefix: HACKQUEST_STORE_XLSX_PATH sets
// store.xlsx_path.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	configDir := ""
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	config.resolvePaths(configDir)
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + field
}

// resolvePaths makes relative paths relative to the config file's directory
func (c *Config) resolvePaths(dir string) {
	if dir == "" {
		return
	}
	for _, p := range []*string{&c.Store.XLSXPath, &c.Store.CredentialsFile, &c.Logging.Path, &c.Logging.AccessPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = "xlsx"
	}
	if c.Store.XLSXPath == "" {
		c.Store.XLSXPath = "hackquest.xlsx"
	}
	if c.Store.SheetName == "" {
		c.Store.SheetName = teams.DefaultSheetName
	}
	if c.Store.RequestsPerMinute == 0 {
		c.Store.RequestsPerMinute = teams.DefaultRequestsPerMinute
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = retry.DefaultMaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = retry.DefaultBaseDelay
	}
	if c.Retry.Timeout == 0 {
		c.Retry.Timeout = retry.DefaultTimeout
	}
	if c.Metrics.Sink == "" {
		c.Metrics.Sink = "none"
	}
	if c.Metrics.DatadogURL == "" {
		c.Metrics.DatadogURL = metrics.DefaultDatadogURL
	}
	if c.Metrics.Timeout == 0 {
		c.Metrics.Timeout = metrics.DefaultTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = string(logging.LogLevelWarn)
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = logging.DefaultMaxSize
	}
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "xlsx":
	case "sheets":
		if c.Store.SpreadsheetID == "" {
			return fmt.Errorf("store.spreadsheet_id is required for the sheets backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Metrics.Sink {
	case "none", "prometheus":
	case "datadog":
		if c.Metrics.DatadogAPIKey == "" {
			return fmt.Errorf("metrics.datadog_api_key is required for the datadog sink")
		}
	default:
		return fmt.Errorf("unknown metrics sink %q", c.Metrics.Sink)
	}

	if c.Retry.MaxAttempts < 0 || c.Retry.BaseDelay < 0 || c.Retry.Timeout < 0 {
		return fmt.Errorf("retry settings must not be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}
