package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// ---------------------------------------------------------------------------
// BootstrapConfig.PortMapping
// ---------------------------------------------------------------------------

func TestPortMapping(t *testing.T) {
	tests := []struct {
		name string
		cfg  BootstrapConfig
		want string
	}{
		{"default redis", BootstrapConfig{HostPort: 6379, ContainerPort: 6379}, "6379:6379"},
		{"remapped host port", BootstrapConfig{HostPort: 16379, ContainerPort: 6379}, "16379:6379"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.PortMapping(); got != tt.want {
				t.Errorf("PortMapping() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Target: TargetConfig{
			BaseURL:       "http://localhost:8080",
			PathPrefix:    "/movies",
			IDMode:        IDModeServer,
			NonexistentID: "nonexistent123",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid minimal config passes", func(t *testing.T) {
		if err := minimalValidConfig().Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("missing base_url", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Target.BaseURL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for empty base_url, got nil")
		}
	})

	t.Run("relative base_url", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Target.BaseURL = "localhost:8080"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for scheme-less base_url, got nil")
		}
	})

	t.Run("ftp base_url", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Target.BaseURL = "ftp://localhost"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for ftp base_url, got nil")
		}
	})

	t.Run("empty path prefix is the bare-route layout", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Target.PathPrefix = ""
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("path prefix without leading slash", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Target.PathPrefix = "movies"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for path prefix without slash, got nil")
		}
	})

	t.Run("client id mode", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Target.IDMode = IDModeClient
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("unknown id mode", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Target.IDMode = "random"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for unknown id_mode, got nil")
		}
	})

	t.Run("missing nonexistent id", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Target.NonexistentID = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for empty nonexistent_id, got nil")
		}
	})

	t.Run("negative timeout", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Target.Timeout = -time.Second
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for negative timeout, got nil")
		}
	})

	t.Run("bootstrap enabled without image", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Bootstrap = BootstrapConfig{Enabled: true, ContainerName: "redis-test", HostPort: 6379, ContainerPort: 6379}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for bootstrap without image, got nil")
		}
	})

	t.Run("bootstrap enabled with bad port", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Bootstrap = BootstrapConfig{Enabled: true, ContainerName: "redis-test", Image: "redis:7", HostPort: 0, ContainerPort: 6379}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for host port 0, got nil")
		}
	})

	t.Run("bootstrap redis ping without addr", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Bootstrap = BootstrapConfig{
			Enabled: true, ContainerName: "redis-test", Image: "redis:7",
			HostPort: 6379, ContainerPort: 6379,
			RedisPing: RedisPingConfig{Enabled: true},
		}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for redis ping without addr, got nil")
		}
	})

	t.Run("disabled bootstrap is not validated", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Bootstrap = BootstrapConfig{Enabled: false}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("file shipper without path", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Report.Shippers = []ShipperConfig{{Enabled: true, Type: "file"}}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for file shipper without path, got nil")
		}
	})

	t.Run("webhook shipper without url", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Report.Shippers = []ShipperConfig{{Enabled: true, Type: "webhook", Webhook: &WebhookConfig{}}}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for webhook shipper without url, got nil")
		}
	})

	t.Run("unknown shipper type", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Report.Shippers = []ShipperConfig{{Enabled: true, Type: "syslog"}}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for unknown shipper, got nil")
		}
	})

	t.Run("disabled shipper is not validated", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Report.Shippers = []ShipperConfig{{Enabled: false, Type: "syslog"}}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("invalid artifacts backend", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Artifacts = ArtifactsConfig{Enabled: true, Backend: "ftp"}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for invalid backend, got nil")
		}
	})

	t.Run("s3 backend missing bucket", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Artifacts = ArtifactsConfig{Enabled: true, Backend: "s3", S3: S3StorageConfig{Region: "us-east-1"}}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for s3 without bucket, got nil")
		}
	})

	t.Run("s3 backend missing region", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Artifacts = ArtifactsConfig{Enabled: true, Backend: "s3", S3: S3StorageConfig{Bucket: "b"}}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for s3 without region, got nil")
		}
	})

	t.Run("azure backend missing key", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Artifacts = ArtifactsConfig{Enabled: true, Backend: "azure", Azure: AzureStorageConfig{AccountName: "a", ContainerName: "c"}}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for azure without key, got nil")
		}
	})

	t.Run("gcs backend missing bucket", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Artifacts = ArtifactsConfig{Enabled: true, Backend: "gcs"}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for gcs without bucket, got nil")
		}
	})

	t.Run("local backend missing base path", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Artifacts = ArtifactsConfig{Enabled: true, Backend: "local"}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for local without base_path, got nil")
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Logging.Level = "verbose"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for invalid log level, got nil")
		}
	})

	t.Run("all valid log levels accepted", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			cfg := minimalValidConfig()
			cfg.Logging.Level = level
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() unexpected error for log level %q: %v", level, err)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// expandEnv
// ---------------------------------------------------------------------------

func TestExpandEnv(t *testing.T) {
	t.Run("expands ${VAR} syntax", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_SECRET", "super-secret")
		got := expandEnv("${CONFIG_TEST_SECRET}")
		if got != "super-secret" {
			t.Errorf("expandEnv() = %q, want %q", got, "super-secret")
		}
	})

	t.Run("plain string passthrough", func(t *testing.T) {
		got := expandEnv("no-vars-here")
		if got != "no-vars-here" {
			t.Errorf("expandEnv() = %q, want %q", got, "no-vars-here")
		}
	})

	t.Run("unset variable expands to empty string", func(t *testing.T) {
		os.Unsetenv("CONFIG_TEST_DEFINITELY_UNSET_12345")
		got := expandEnv("${CONFIG_TEST_DEFINITELY_UNSET_12345}")
		if got != "" {
			t.Errorf("expandEnv() = %q, want empty string", got)
		}
	})
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// writeTempConfig creates a temp YAML file and registers a cleanup to remove it.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "moviecheck-test-*.yaml")
	if err != nil {
		t.Fatal("CreateTemp:", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	if _, err := f.WriteString(content); err != nil {
		t.Fatal("WriteString:", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load("/nonexistent/path/moviecheck.yaml", nil)
	if err == nil {
		t.Fatal("Load() expected error for an explicit missing file, got nil")
	}
	if !strings.Contains(err.Error(), "error reading config file") {
		t.Errorf("Load() error = %v, want error reading config file", err)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "logging:\n  level: \"info\"\n")
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Target.BaseURL != "http://localhost:8080" {
		t.Errorf("default Target.BaseURL = %q, want http://localhost:8080", cfg.Target.BaseURL)
	}
	if cfg.Target.PathPrefix != "/movies" {
		t.Errorf("default Target.PathPrefix = %q, want /movies", cfg.Target.PathPrefix)
	}
	if cfg.Target.IDMode != IDModeServer {
		t.Errorf("default Target.IDMode = %q, want server", cfg.Target.IDMode)
	}
	if cfg.Target.NonexistentID != "nonexistent123" {
		t.Errorf("default Target.NonexistentID = %q, want nonexistent123", cfg.Target.NonexistentID)
	}
	if cfg.Target.Timeout != 0 {
		t.Errorf("default Target.Timeout = %v, want 0", cfg.Target.Timeout)
	}
	if !cfg.Checks.Duplicate || !cfg.Checks.Health || !cfg.Checks.HealthFirst || !cfg.Checks.VerifyFields {
		t.Errorf("default Checks = %+v, want duplicate/health/health_first/verify_fields enabled", cfg.Checks)
	}
	if cfg.Bootstrap.Enabled {
		t.Error("default Bootstrap.Enabled = true, want false")
	}
	if cfg.Bootstrap.ContainerName != "redis-test" {
		t.Errorf("default Bootstrap.ContainerName = %q, want redis-test", cfg.Bootstrap.ContainerName)
	}
	if cfg.Bootstrap.Image != "redis:7" {
		t.Errorf("default Bootstrap.Image = %q, want redis:7", cfg.Bootstrap.Image)
	}
	if cfg.Bootstrap.ReadyDelay != 2*time.Second {
		t.Errorf("default Bootstrap.ReadyDelay = %v, want 2s", cfg.Bootstrap.ReadyDelay)
	}
	if cfg.Artifacts.Backend != "local" {
		t.Errorf("default Artifacts.Backend = %q, want local", cfg.Artifacts.Backend)
	}
	if cfg.Artifacts.Enabled {
		t.Error("default Artifacts.Enabled = true, want false")
	}
	if len(cfg.Report.Shippers) != 0 {
		t.Errorf("default Report.Shippers = %v, want none", cfg.Report.Shippers)
	}
	if cfg.Telemetry.Metrics.Job != "moviecheck" {
		t.Errorf("default Telemetry.Metrics.Job = %q, want moviecheck", cfg.Telemetry.Metrics.Job)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
target:
  base_url: "http://movies.internal:9000/"
  path_prefix: ""
  id_mode: "client"
  timeout: "5s"
checks:
  duplicate: false
bootstrap:
  enabled: true
  container_name: "redis-ci"
  host_port: 16379
report:
  shippers:
    - enabled: true
      type: file
      file:
        path: /tmp/results.jsonl
logging:
  level: "debug"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Target.BaseURL != "http://movies.internal:9000" {
		t.Errorf("Target.BaseURL = %q, want trailing slash trimmed", cfg.Target.BaseURL)
	}
	if cfg.Target.PathPrefix != "" {
		t.Errorf("Target.PathPrefix = %q, want empty", cfg.Target.PathPrefix)
	}
	if cfg.Target.IDMode != IDModeClient {
		t.Errorf("Target.IDMode = %q, want client", cfg.Target.IDMode)
	}
	if cfg.Target.Timeout != 5*time.Second {
		t.Errorf("Target.Timeout = %v, want 5s", cfg.Target.Timeout)
	}
	if cfg.Checks.Duplicate {
		t.Error("Checks.Duplicate = true, want false")
	}
	if cfg.Bootstrap.ContainerName != "redis-ci" || cfg.Bootstrap.PortMapping() != "16379:6379" {
		t.Errorf("Bootstrap = %+v, want redis-ci on 16379:6379", cfg.Bootstrap)
	}
	if len(cfg.Report.Shippers) != 1 || cfg.Report.Shippers[0].File == nil || cfg.Report.Shippers[0].File.Path != "/tmp/results.jsonl" {
		t.Errorf("Report.Shippers = %+v, want one file shipper", cfg.Report.Shippers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("MOVIECHECK_TARGET_BASE_URL", "http://from-env:7000")
	t.Setenv("MOVIECHECK_CHECKS_HEALTH", "false")
	path := writeTempConfig(t, "target:\n  base_url: \"http://from-file:8080\"\n")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Target.BaseURL != "http://from-env:7000" {
		t.Errorf("Target.BaseURL = %q, want env value", cfg.Target.BaseURL)
	}
	if cfg.Checks.Health {
		t.Error("Checks.Health = true, want false from env")
	}
}

func TestLoad_EnvEmptyPathPrefix(t *testing.T) {
	t.Setenv("MOVIECHECK_TARGET_PATH_PREFIX", "")
	path := writeTempConfig(t, "target:\n  path_prefix: \"/movies\"\n")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Target.PathPrefix != "" {
		t.Errorf("Target.PathPrefix = %q, want empty from env", cfg.Target.PathPrefix)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("MOVIECHECK_TARGET_BASE_URL", "http://from-env:7000")
	path := writeTempConfig(t, "logging:\n  level: info\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("base-url", "", "")
	flags.String("id-mode", "", "")
	flags.Bool("verbose", false, "")
	if err := flags.Parse([]string{"--base-url", "http://from-flag:6000", "--verbose"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Target.BaseURL != "http://from-flag:6000" {
		t.Errorf("Target.BaseURL = %q, want flag value", cfg.Target.BaseURL)
	}
	if !cfg.Report.Verbose {
		t.Error("Report.Verbose = false, want true from flag")
	}
	// Unset flag must not clobber the default with its zero value.
	if cfg.Target.IDMode != IDModeServer {
		t.Errorf("Target.IDMode = %q, want default server", cfg.Target.IDMode)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_HOOK_TOKEN", "s3cr3t")
	const content = `
report:
  shippers:
    - enabled: true
      type: webhook
      webhook:
        url: "http://hooks.local/results"
        headers:
          authorization: "Bearer ${TEST_HOOK_TOKEN}"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	wh := cfg.Report.Shippers[0].Webhook
	if wh == nil {
		t.Fatal("webhook config is nil")
	}
	// viper lower-cases map keys
	if got := wh.Headers["authorization"]; got != "Bearer s3cr3t" {
		t.Errorf("authorization header = %q, want expanded token", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "target: [unclosed")
	_, err := Load(path, nil)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidValueFailsValidation(t *testing.T) {
	path := writeTempConfig(t, "target:\n  id_mode: \"sometimes\"\n")
	_, err := Load(path, nil)
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Load() error = %v, want invalid configuration", err)
	}
}
