package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/kozaktomas/face-recognizer/internal/matcher"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	builtinOnce sync.Once
	builtin     DefaultsConfig
)

// Builtin returns the defaults embedded from defaults.yaml. Every package
// that needs a default threshold or comparison band reads it from here.
func Builtin() DefaultsConfig {
	builtinOnce.Do(func() {
		if err := yaml.Unmarshal(defaultsYAML, &builtin); err != nil {
			// This is an embedded file so this error should never happen in practice
			panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
		}
	})
	return builtin
}

// Store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	Store     StoreConfig
	Match     MatchConfig
	Extractor ExtractorConfig
	Database  DatabaseConfig
	Log       LogConfig
	Backup    BackupConfig
	Web       WebConfig
	Defaults  DefaultsConfig
}

type StoreConfig struct {
	Backend        string `default:"file"`
	Path           string `default:"face_database.parquet"`
	Dimension      int    `default:"0"` // 0 = learn from the first embedding
	DiscardCorrupt bool   `split_words:"true" default:"false"`
}

type MatchConfig struct {
	Metric    string   `default:"cosine"`
	Threshold *float64 // nil = metric default from defaults.yaml
}

type ExtractorConfig struct {
	URL          string        `default:"http://localhost:8000"`
	Timeout      time.Duration `default:"60s"`
	MinDetScore  float64       `split_words:"true" default:"0.5"`
	Concurrency  int           `default:"4"`
	MaxImageSide int           `split_words:"true" default:"1920"` // larger images are downscaled before upload, 0 disables
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    `split_words:"true" default:"10"` // Maximum open connections
	MaxIdleConns int    `split_words:"true" default:"2"`  // Maximum idle connections
}

type LogConfig struct {
	Level  string `default:"info"`
	Format string `default:"json"` // json or console
	File   string // optional rotating log file
}

// BackupConfig points at an S3-compatible bucket. Backups are disabled when
// Endpoint is empty.
type BackupConfig struct {
	Endpoint  string
	Bucket    string `default:"face-recognizer"`
	AccessKey string `split_words:"true"`
	SecretKey string `split_words:"true"`
	UseSSL    bool   `split_words:"true" default:"true"`
	Prefix    string `default:"snapshots/"`
}

// Enabled reports whether a backup endpoint is configured.
func (c *BackupConfig) Enabled() bool {
	return c.Endpoint != ""
}

type WebConfig struct {
	Host           string   `default:"0.0.0.0"`
	Port           int      `default:"8000"`
	AllowedOrigins []string `split_words:"true"`
}

type DefaultsConfig struct {
	Thresholds ThresholdDefaults `yaml:"thresholds"`
	Compare    CompareBands      `yaml:"compare"`
}

type ThresholdDefaults struct {
	Cosine    float64 `yaml:"cosine"`
	Euclidean float64 `yaml:"euclidean"`
}

type CompareBands struct {
	SamePerson    float64 `yaml:"same_person"`
	PossibleMatch float64 `yaml:"possible_match"`
}

// Threshold returns the default acceptance threshold for metric.
func (d DefaultsConfig) Threshold(metric matcher.Metric) float64 {
	if metric == matcher.Euclidean {
		return d.Thresholds.Euclidean
	}
	return d.Thresholds.Cosine
}

// Load reads the configuration from the environment on top of the embedded
// defaults.
func Load() (*Config, error) {
	cfg := Config{Defaults: Builtin()}

	sections := []struct {
		prefix string
		target any
	}{
		{"STORE", &cfg.Store},
		{"MATCH", &cfg.Match},
		{"EXTRACTOR", &cfg.Extractor},
		{"DATABASE", &cfg.Database},
		{"LOG", &cfg.Log},
		{"BACKUP", &cfg.Backup},
		{"WEB", &cfg.Web},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return nil, fmt.Errorf("reading %s_* settings: %w", s.prefix, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that envconfig cannot.
func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("STORE_PATH is required for the %s backend", BackendFile)
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (expected file or postgres)", c.Store.Backend)
	}

	metric, err := matcher.ParseMetric(c.Match.Metric)
	if err != nil {
		return fmt.Errorf("invalid MATCH_METRIC: %w", err)
	}
	c.Match.Metric = string(metric)
	if c.Match.Threshold != nil {
		if err := metric.CheckThreshold(*c.Match.Threshold); err != nil {
			return fmt.Errorf("invalid MATCH_THRESHOLD: %w", err)
		}
	}
	if c.Store.Dimension < 0 {
		return fmt.Errorf("STORE_DIMENSION must not be negative, got %d", c.Store.Dimension)
	}
	if c.Extractor.Concurrency < 1 {
		c.Extractor.Concurrency = 1
	}
	return nil
}

// Threshold returns the configured acceptance threshold, falling back to the
// built-in default for the configured metric. An explicit zero is honored.
func (c *Config) Threshold() float64 {
	if c.Match.Threshold != nil {
		return *c.Match.Threshold
	}
	return c.Defaults.Threshold(matcher.Metric(c.Match.Metric))
}
