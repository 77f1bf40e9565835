// Package config loads metacore settings from YAML with environment
// substitution and METACORE_* overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"metacore/internal/blob"
	"metacore/internal/core"
	"metacore/internal/logging"
	"metacore/internal/tabular"
)

// Config is the root configuration document.
type Config struct {
	Storage StorageConfig  `yaml:"storage"`
	Blob    BlobConfig     `yaml:"blob"`
	Log     logging.Config `yaml:"log"`
	Import  ImportConfig   `yaml:"import"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Trace   TraceConfig    `yaml:"trace"`
	Notify  NotifyConfig   `yaml:"notify"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects the blob backend.
type BlobConfig struct {
	Driver string   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// S3Config holds S3 connection settings.
type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	PathStyle       bool   `yaml:"path_style"`
}

// ImportConfig tunes table imports and exports.
type ImportConfig struct {
	Workers           int    `yaml:"workers"`
	ExportCompression string `yaml:"export_compression"`
}

// Metrics exporters.
const (
	MetricsNone       = "none"
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
)

// MetricsConfig selects the operation metrics recorder. Path, when set,
// receives a snapshot when the command exits: Prometheus text format for
// prometheus, JSON for expvar.
type MetricsConfig struct {
	Exporter string `yaml:"exporter"`
	Path     string `yaml:"path"`
}

// TraceConfig enables JSON-lines operation spans appended to Path.
type TraceConfig struct {
	Path string `yaml:"path"`
}

// NotifyConfig adds a JSON-lines notification sink appended to JSONL.
type NotifyConfig struct {
	JSONL string `yaml:"jsonl"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: string(core.StorageSQLite), SQLitePath: "metacore.db"},
		Blob:    BlobConfig{Driver: string(blob.DriverFilesystem), FSRoot: "metacore-blobs"},
		Log:     logging.Config{Level: "info", Encoding: "console"},
		Import:  ImportConfig{Workers: 4},
		Metrics: MetricsConfig{Exporter: MetricsNone},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data), os.LookupEnv)), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-fallback} references.
func substituteEnvVars(content string, lookup func(string) (string, bool)) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		name, fallback, hasFallback := strings.Cut(content[start+2:end], ":-")
		value, ok := lookup(name)
		if (!ok || value == "") && hasFallback {
			value = fallback
		}
		b.WriteString(content[:start])
		b.WriteString(value)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}

// ApplyEnv overrides fields from METACORE_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("METACORE_STORAGE_DRIVER", &c.Storage.Driver)
	str("METACORE_SQLITE_PATH", &c.Storage.SQLitePath)
	str("METACORE_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("METACORE_BLOB_DRIVER", &c.Blob.Driver)
	str("METACORE_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("METACORE_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("METACORE_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("METACORE_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("METACORE_BLOB_S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	str("METACORE_BLOB_S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	str("METACORE_BLOB_S3_SESSION_TOKEN", &c.Blob.S3.SessionToken)
	str("METACORE_LOG_LEVEL", &c.Log.Level)
	str("METACORE_LOG_ENCODING", &c.Log.Encoding)
	str("METACORE_EXPORT_COMPRESSION", &c.Import.ExportCompression)
	str("METACORE_METRICS_EXPORTER", &c.Metrics.Exporter)
	str("METACORE_METRICS_PATH", &c.Metrics.Path)
	str("METACORE_TRACE_PATH", &c.Trace.Path)
	str("METACORE_NOTIFY_JSONL", &c.Notify.JSONL)

	var errs []error
	if v, ok := lookup("METACORE_BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("METACORE_BLOB_S3_PATH_STYLE: %w", err))
		}
		c.Blob.S3.PathStyle = b
	}
	if v, ok := lookup("METACORE_IMPORT_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("METACORE_IMPORT_WORKERS: %w", err))
		}
		c.Import.Workers = n
	}
	return errors.Join(errs...)
}

// Validate rejects unknown drivers and incomplete backend settings.
func (c Config) Validate() error {
	var errs []error
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage: postgres driver requires postgres_dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob: s3 driver requires a bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob: unknown driver %q", c.Blob.Driver))
	}
	if c.Import.Workers < 1 {
		errs = append(errs, fmt.Errorf("import: workers must be positive, got %d", c.Import.Workers))
	}
	if _, err := tabular.ParseCompression(c.Import.ExportCompression); err != nil {
		errs = append(errs, fmt.Errorf("import: %w", err))
	}
	switch c.Metrics.Exporter {
	case "", MetricsNone:
		if c.Metrics.Path != "" {
			errs = append(errs, errors.New("metrics: path requires an exporter"))
		}
	case MetricsPrometheus, MetricsExpvar:
	default:
		errs = append(errs, fmt.Errorf("metrics: unknown exporter %q", c.Metrics.Exporter))
	}
	return errors.Join(errs...)
}

// StorageOptions converts the storage section for core.OpenPersistentStore.
func (c Config) StorageOptions() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobOptions converts the blob section for blob.Open.
func (c Config) BlobOptions() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Region:          c.Blob.S3.Region,
			Bucket:          c.Blob.S3.Bucket,
			Endpoint:        c.Blob.S3.Endpoint,
			AccessKeyID:     c.Blob.S3.AccessKeyID,
			SecretAccessKey: c.Blob.S3.SecretAccessKey,
			SessionToken:    c.Blob.S3.SessionToken,
			PathStyle:       c.Blob.S3.PathStyle,
		},
	}
}

// ExportCompression returns the configured export codec.
func (c Config) ExportCompression() tabular.Compression {
	comp, _ := tabular.ParseCompression(c.Import.ExportCompression)
	return comp
}
