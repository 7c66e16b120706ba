// Package config loads and validates the moviecheck configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables < command-line flags. Environment variables use the MOVIECHECK_
// prefix (e.g., MOVIECHECK_TARGET_BASE_URL overrides target.base_url in the
// YAML). With no file and no environment the defaults target a local server
// at http://localhost:8080 with /movies routes and server-assigned ids.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ID modes select which side of the API contract generates movie identifiers.
const (
	IDModeServer = "server"
	IDModeClient = "client"
)

// Config holds all application configuration
type Config struct {
	Target    TargetConfig    `mapstructure:"target"`
	Checks    ChecksConfig    `mapstructure:"checks"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Report    ReportConfig    `mapstructure:"report"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// TargetConfig describes the movie API under test
type TargetConfig struct {
	BaseURL string `mapstructure:"base_url"`

	// PathPrefix is "/movies" for the nested route layout or "" for bare /add, /get/{id}.
	PathPrefix    string        `mapstructure:"path_prefix"`
	IDMode        string        `mapstructure:"id_mode"`
	NonexistentID string        `mapstructure:"nonexistent_id"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ChecksConfig toggles the optional steps of the verification script
type ChecksConfig struct {
	Duplicate    bool `mapstructure:"duplicate"`
	Health       bool `mapstructure:"health"`
	HealthFirst  bool `mapstructure:"health_first"`
	VerifyFields bool `mapstructure:"verify_fields"`
	UniqueTitle  bool `mapstructure:"unique_title"`
}

// BootstrapConfig holds the dependency container settings
type BootstrapConfig struct {
	Enabled       bool            `mapstructure:"enabled"`
	DockerBinary  string          `mapstructure:"docker_binary"`
	ContainerName string          `mapstructure:"container_name"`
	Image         string          `mapstructure:"image"`
	HostPort      int             `mapstructure:"host_port"`
	ContainerPort int             `mapstructure:"container_port"`
	ReadyDelay    time.Duration   `mapstructure:"ready_delay"`
	RedisPing     RedisPingConfig `mapstructure:"redis_ping"`
}

// RedisPingConfig enables a single PING after the ready delay
type RedisPingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ReportConfig holds console and shipping configuration
type ReportConfig struct {
	Verbose  bool            `mapstructure:"verbose"`
	Color    bool            `mapstructure:"color"`
	Shippers []ShipperConfig `mapstructure:"shippers"`
}

// ShipperConfig holds configuration for a single result shipper
type ShipperConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Type    string         `mapstructure:"type"` // file, webhook
	File    *FileConfig    `mapstructure:"file"`
	Webhook *WebhookConfig `mapstructure:"webhook"`
}

// FileConfig holds file shipper configuration
type FileConfig struct {
	Path string `mapstructure:"path"`
}

// WebhookConfig holds webhook shipper configuration
type WebhookConfig struct {
	URL           string            `mapstructure:"url"`
	Headers       map[string]string `mapstructure:"headers"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval time.Duration     `mapstructure:"flush_interval"`
}

// ArtifactsConfig controls the transcript upload that follows a run
type ArtifactsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"`
	Prefix  string `mapstructure:"prefix"`

	Local LocalStorageConfig `mapstructure:"local"`
	S3    S3StorageConfig    `mapstructure:"s3"`
	Azure AzureStorageConfig `mapstructure:"azure"`
	GCS   GCSStorageConfig   `mapstructure:"gcs"`
}

// LocalStorageConfig holds local filesystem storage configuration
type LocalStorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// S3StorageConfig holds S3-compatible storage configuration
type S3StorageConfig struct {
	// Endpoint is optional, for MinIO and other S3-compatible services
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// RoleARN, when set, is assumed through STS on top of the base credentials
	RoleARN    string `mapstructure:"role_arn"`
	ExternalID string `mapstructure:"external_id"`
}

// AzureStorageConfig holds Azure Blob Storage configuration
type AzureStorageConfig struct {
	AccountName   string `mapstructure:"account_name"`
	AccountKey    string `mapstructure:"account_key"`
	ContainerName string `mapstructure:"container_name"`

	// ServiceURL overrides https://<account>.blob.core.windows.net/ (Azurite)
	ServiceURL string `mapstructure:"service_url"`
}

// GCSStorageConfig holds Google Cloud Storage configuration
type GCSStorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	Endpoint        string `mapstructure:"endpoint"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds run metrics configuration
type TelemetryConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls where run metrics are exported after the run
type MetricsConfig struct {
	Textfile       string `mapstructure:"textfile"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// AutomaticEnv() alone does not reach nested keys during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Target
		"target.base_url",
		"target.path_prefix",
		"target.id_mode",
		"target.nonexistent_id",
		"target.timeout",

		// Checks
		"checks.duplicate",
		"checks.health",
		"checks.health_first",
		"checks.verify_fields",
		"checks.unique_title",

		// Bootstrap
		"bootstrap.enabled",
		"bootstrap.docker_binary",
		"bootstrap.container_name",
		"bootstrap.image",
		"bootstrap.host_port",
		"bootstrap.container_port",
		"bootstrap.ready_delay",
		"bootstrap.redis_ping.enabled",
		"bootstrap.redis_ping.addr",

		// Report
		"report.verbose",
		"report.color",

		// Artifacts
		"artifacts.enabled",
		"artifacts.backend",
		"artifacts.prefix",
		"artifacts.local.base_path",
		"artifacts.s3.endpoint",
		"artifacts.s3.region",
		"artifacts.s3.bucket",
		"artifacts.s3.access_key_id",
		"artifacts.s3.secret_access_key",
		"artifacts.s3.role_arn",
		"artifacts.s3.external_id",
		"artifacts.azure.account_name",
		"artifacts.azure.account_key",
		"artifacts.azure.container_name",
		"artifacts.azure.service_url",
		"artifacts.gcs.bucket",
		"artifacts.gcs.credentials_file",
		"artifacts.gcs.credentials_json",
		"artifacts.gcs.endpoint",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.metrics.textfile",
		"telemetry.metrics.pushgateway_url",
		"telemetry.metrics.job",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// flagKeys maps command-line flag names to the config keys they override.
var flagKeys = map[string]string{
	"base-url":    "target.base_url",
	"path-prefix": "target.path_prefix",
	"id-mode":     "target.id_mode",
	"timeout":     "target.timeout",
	"bootstrap":   "bootstrap.enabled",
	"verbose":     "report.verbose",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
}

// Load loads configuration from file, environment variables and, when flags is
// non-nil, any of the known flags the user set explicitly.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("moviecheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/moviecheck")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MOVIECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// An empty variable is a value: MOVIECHECK_TARGET_PATH_PREFIX= selects bare routes.
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Artifacts.S3.AccessKeyID = expandEnv(cfg.Artifacts.S3.AccessKeyID)
	cfg.Artifacts.S3.SecretAccessKey = expandEnv(cfg.Artifacts.S3.SecretAccessKey)
	cfg.Artifacts.Azure.AccountKey = expandEnv(cfg.Artifacts.Azure.AccountKey)
	cfg.Artifacts.GCS.CredentialsJSON = expandEnv(cfg.Artifacts.GCS.CredentialsJSON)
	for i := range cfg.Report.Shippers {
		if wh := cfg.Report.Shippers[i].Webhook; wh != nil {
			for k, val := range wh.Headers {
				wh.Headers[k] = expandEnv(val)
			}
		}
	}

	cfg.Target.BaseURL = strings.TrimRight(cfg.Target.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Target defaults
	v.SetDefault("target.base_url", "http://localhost:8080")
	v.SetDefault("target.path_prefix", "/movies")
	v.SetDefault("target.id_mode", IDModeServer)
	v.SetDefault("target.nonexistent_id", "nonexistent123")
	v.SetDefault("target.timeout", "0s")

	// Check defaults
	v.SetDefault("checks.duplicate", true)
	v.SetDefault("checks.health", true)
	v.SetDefault("checks.health_first", true)
	v.SetDefault("checks.verify_fields", true)
	v.SetDefault("checks.unique_title", false)

	// Bootstrap defaults
	v.SetDefault("bootstrap.enabled", false)
	v.SetDefault("bootstrap.docker_binary", "docker")
	v.SetDefault("bootstrap.container_name", "redis-test")
	v.SetDefault("bootstrap.image", "redis:7")
	v.SetDefault("bootstrap.host_port", 6379)
	v.SetDefault("bootstrap.container_port", 6379)
	v.SetDefault("bootstrap.ready_delay", "2s")
	v.SetDefault("bootstrap.redis_ping.enabled", false)
	v.SetDefault("bootstrap.redis_ping.addr", "localhost:6379")

	// Report defaults
	v.SetDefault("report.verbose", false)
	v.SetDefault("report.color", true)

	// Artifact defaults
	v.SetDefault("artifacts.enabled", false)
	v.SetDefault("artifacts.backend", "local")
	v.SetDefault("artifacts.prefix", "moviecheck")
	v.SetDefault("artifacts.local.base_path", "./moviecheck-artifacts")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Telemetry defaults
	v.SetDefault("telemetry.metrics.textfile", "")
	v.SetDefault("telemetry.metrics.pushgateway_url", "")
	v.SetDefault("telemetry.metrics.job", "moviecheck")
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate target
	if c.Target.BaseURL == "" {
		return fmt.Errorf("target.base_url is required")
	}
	u, err := url.Parse(c.Target.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid target.base_url: %q (must be an absolute http or https URL)", c.Target.BaseURL)
	}
	if c.Target.PathPrefix != "" && !strings.HasPrefix(c.Target.PathPrefix, "/") {
		return fmt.Errorf("target.path_prefix must be empty or start with '/': %q", c.Target.PathPrefix)
	}
	if c.Target.IDMode != IDModeServer && c.Target.IDMode != IDModeClient {
		return fmt.Errorf("invalid target.id_mode: %s (must be server or client)", c.Target.IDMode)
	}
	if c.Target.NonexistentID == "" {
		return fmt.Errorf("target.nonexistent_id is required")
	}
	if c.Target.Timeout < 0 {
		return fmt.Errorf("target.timeout must not be negative")
	}

	// Validate bootstrap if enabled
	if c.Bootstrap.Enabled {
		if c.Bootstrap.ContainerName == "" {
			return fmt.Errorf("bootstrap.container_name is required when bootstrap is enabled")
		}
		if c.Bootstrap.Image == "" {
			return fmt.Errorf("bootstrap.image is required when bootstrap is enabled")
		}
		if c.Bootstrap.HostPort < 1 || c.Bootstrap.HostPort > 65535 {
			return fmt.Errorf("invalid bootstrap.host_port: %d", c.Bootstrap.HostPort)
		}
		if c.Bootstrap.ContainerPort < 1 || c.Bootstrap.ContainerPort > 65535 {
			return fmt.Errorf("invalid bootstrap.container_port: %d", c.Bootstrap.ContainerPort)
		}
		if c.Bootstrap.RedisPing.Enabled && c.Bootstrap.RedisPing.Addr == "" {
			return fmt.Errorf("bootstrap.redis_ping.addr is required when redis ping is enabled")
		}
	}

	// Validate shippers
	for i, s := range c.Report.Shippers {
		if !s.Enabled {
			continue
		}
		switch s.Type {
		case "file":
			if s.File == nil || s.File.Path == "" {
				return fmt.Errorf("report.shippers[%d]: file.path is required for file shipper", i)
			}
		case "webhook":
			if s.Webhook == nil || s.Webhook.URL == "" {
				return fmt.Errorf("report.shippers[%d]: webhook.url is required for webhook shipper", i)
			}
		default:
			return fmt.Errorf("report.shippers[%d]: unknown shipper type: %s", i, s.Type)
		}
	}

	// Validate artifact backend if enabled
	if c.Artifacts.Enabled {
		validBackends := map[string]bool{"azure": true, "s3": true, "gcs": true, "local": true}
		if !validBackends[c.Artifacts.Backend] {
			return fmt.Errorf("invalid artifacts backend: %s (must be azure, s3, gcs, or local)", c.Artifacts.Backend)
		}
		switch c.Artifacts.Backend {
		case "local":
			if c.Artifacts.Local.BasePath == "" {
				return fmt.Errorf("artifacts.local.base_path is required when using local backend")
			}
		case "s3":
			if c.Artifacts.S3.Bucket == "" {
				return fmt.Errorf("artifacts.s3.bucket is required when using S3 backend")
			}
			if c.Artifacts.S3.Region == "" {
				return fmt.Errorf("artifacts.s3.region is required when using S3 backend")
			}
		case "azure":
			if c.Artifacts.Azure.AccountName == "" {
				return fmt.Errorf("artifacts.azure.account_name is required when using Azure backend")
			}
			if c.Artifacts.Azure.AccountKey == "" {
				return fmt.Errorf("artifacts.azure.account_key is required when using Azure backend")
			}
			if c.Artifacts.Azure.ContainerName == "" {
				return fmt.Errorf("artifacts.azure.container_name is required when using Azure backend")
			}
		case "gcs":
			if c.Artifacts.GCS.Bucket == "" {
				return fmt.Errorf("artifacts.gcs.bucket is required when using GCS backend")
			}
		}
	}

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// PortMapping returns the docker -p value, host:container
func (c *BootstrapConfig) PortMapping() string {
	return fmt.Sprintf("%d:%d", c.HostPort, c.ContainerPort)
}
