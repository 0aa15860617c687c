package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nozomi-tproxy/pkg/logger"
)

type testConfig struct {
	Port     uint32        `mapstructure:"port"`
	Interval time.Duration `mapstructure:"interval"`
	Log      LogConfig     `mapstructure:"log"`
}

func (c *testConfig) Validate() error {
	if c.Port == 0 {
		return errors.New("port is required")
	}
	return c.Log.Validate()
}

func (c *testConfig) GetLog() *LogConfig {
	return &c.Log
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoaderDotEnv(t *testing.T) {
	envPath := writeFile(t, ".env", `TEST_VALUE=hello
TEST_NUMBER=42
`)
	t.Cleanup(func() {
		os.Unsetenv("TEST_VALUE")
		os.Unsetenv("TEST_NUMBER")
	})

	loader := NewLoader("test")
	if err := loader.LoadFile(envPath); err != nil {
		t.Fatalf("failed to load .env: %v", err)
	}

	if val := os.Getenv("TEST_VALUE"); val != "hello" {
		t.Errorf("expected env var TEST_VALUE=hello, got %s", val)
	}

	if val := loader.Get("value"); val != "hello" {
		t.Errorf("expected viper to get 'value' as 'hello', got %v", val)
	}
}

func TestLoaderDotEnvKeepsExistingEnv(t *testing.T) {
	t.Setenv("TEST_VALUE", "from-env")
	envPath := writeFile(t, "local.env", "TEST_VALUE=from-file\n")

	loader := NewLoader("test")
	if err := loader.LoadFile(envPath); err != nil {
		t.Fatalf("failed to load env file: %v", err)
	}

	if val := os.Getenv("TEST_VALUE"); val != "from-env" {
		t.Errorf("expected existing value to win, got %s", val)
	}
}

func TestLoaderMissingEnvFile(t *testing.T) {
	loader := NewLoader("test")
	if err := loader.LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}

func clearLogEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
}

func TestLoadYAML(t *testing.T) {
	clearLogEnv(t)
	path := writeFile(t, "nozomi.yaml", `port: 8080
interval: 250ms
log:
  level: debug
  format: json
`)

	cfg := &testConfig{Log: DefaultLogConfig()}
	if err := Load("nozomi-test", path, cfg); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Interval != 250*time.Millisecond {
		t.Errorf("expected interval 250ms, got %s", cfg.Interval)
	}
	if cfg.Log.Level != logger.LevelDebug {
		t.Errorf("expected level debug, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != logger.FormatJSON {
		t.Errorf("expected format json, got %s", cfg.Log.Format)
	}
}

func TestLoadPrefixedEnv(t *testing.T) {
	clearLogEnv(t)
	t.Setenv("NOZOMI_TEST_PORT", "9000")
	t.Setenv("NOZOMI_TEST_LOG_LEVEL", "warn")

	cfg := &testConfig{Log: DefaultLogConfig()}
	if err := Load("nozomi-test", "", cfg); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.Log.Level != logger.LevelWarn {
		t.Errorf("expected level warn, got %s", cfg.Log.Level)
	}
}

func TestLoadNestedEnvOverridesFile(t *testing.T) {
	clearLogEnv(t)
	path := writeFile(t, "nozomi.yaml", `port: 8080
log:
  level: debug
`)
	t.Setenv("NOZOMI_TEST_LOG_LEVEL", "error")
	t.Setenv("NOZOMI_TEST_LOG_FORMAT", "json")
	t.Setenv("NOZOMI_TEST_LOG_DEVELOPMENT", "true")

	cfg := &testConfig{Log: DefaultLogConfig()}
	if err := Load("nozomi-test", path, cfg); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080 from file, got %d", cfg.Port)
	}
	if cfg.Log.Level != logger.LevelError {
		t.Errorf("expected level error, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != logger.FormatJSON {
		t.Errorf("expected format json, got %s", cfg.Log.Format)
	}
	if !cfg.Log.Development {
		t.Error("expected development from environment")
	}
}

func TestLoadValidates(t *testing.T) {
	cfg := &testConfig{Log: DefaultLogConfig()}
	if err := Load("nozomi-test", "", cfg); err == nil {
		t.Error("expected validation error for missing port")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := &testConfig{Port: 1, Log: DefaultLogConfig()}
	if err := Load("nozomi-test", filepath.Join(t.TempDir(), "absent.yaml"), cfg); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLogConfigApplyEnv(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		format     string
		wantLevel  logger.Level
		wantFormat logger.Format
		wantErr    bool
	}{
		{"unset keeps defaults", "", "", logger.LevelInfo, logger.FormatText, false},
		{"trace maps to debug", "trace", "", logger.LevelDebug, logger.FormatText, false},
		{"format override", "", "json", logger.LevelInfo, logger.FormatJSON, false},
		{"bad level", "verbose", "", "", "", true},
		{"bad format", "", "xml", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("LOG_FORMAT", tt.format)

			cfg := DefaultLogConfig()
			err := cfg.ApplyEnv()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Level != tt.wantLevel {
				t.Errorf("expected level %s, got %s", tt.wantLevel, cfg.Level)
			}
			if cfg.Format != tt.wantFormat {
				t.Errorf("expected format %s, got %s", tt.wantFormat, cfg.Format)
			}
		})
	}
}
