package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// testConfig renders a minimal valid configuration for lifecycle tests.
// MQTT and InfluxDB are disabled so the tests need no external services.
func testConfig(dbPath string, apiPort int) string {
	return `
platform:
  id: test-platform
  operator: "0xoperator"

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

settlement:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: ` + strconv.Itoa(apiPort) + `

security:
  jwt:
    secret: "test-secret-for-development-only-0123456789"
`
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("METERLEASE_CONFIG")
	defer os.Setenv("METERLEASE_CONFIG", originalEnv)

	os.Setenv("METERLEASE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingOperator verifies run fails when no operator is configured.
func TestRun_MissingOperator(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
platform:
  id: test-platform

database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"

mqtt:
  enabled: false

security:
  jwt:
    secret: "test-secret-for-development-only-0123456789"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("METERLEASE_CONFIG")
	defer os.Setenv("METERLEASE_CONFIG", originalEnv)
	os.Setenv("METERLEASE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without platform.operator")
	}
}

// TestGetConfigPath_Default verifies the default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("METERLEASE_CONFIG")
	defer os.Setenv("METERLEASE_CONFIG", originalEnv)

	os.Unsetenv("METERLEASE_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("METERLEASE_CONFIG")
	defer os.Setenv("METERLEASE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("METERLEASE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupAndShutdown runs the full stack with external services
// disabled and verifies a clean shutdown on context cancellation.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	if err := os.WriteFile(configPath, []byte(testConfig(dbPath, 18931)), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("METERLEASE_CONFIG")
	defer os.Setenv("METERLEASE_CONFIG", originalEnv)
	os.Setenv("METERLEASE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v, want clean shutdown", err)
	}

	// Database file should exist after migrations
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// TestMeteringFieldHelpers verifies field extraction from both in-process
// and JSON-decoded event payloads.
func TestMeteringFieldHelpers(t *testing.T) {
	fields := map[string]any{
		"device_id":        "mtr-001",
		"fee":              int64(5000),
		"total_fee":        float64(70000),
		"duration_seconds": int64(90),
	}

	if got := stringField(fields, "device_id"); got != "mtr-001" {
		t.Errorf("stringField() = %q", got)
	}
	if got := stringField(fields, "missing"); got != "" {
		t.Errorf("stringField(missing) = %q, want empty", got)
	}
	if got := int64Field(fields, "fee"); got != 5000 {
		t.Errorf("int64Field(int64) = %d", got)
	}
	if got := int64Field(fields, "total_fee"); got != 70000 {
		t.Errorf("int64Field(float64) = %d", got)
	}
	if got := int64Field(fields, "missing"); got != 0 {
		t.Errorf("int64Field(missing) = %d, want 0", got)
	}
	if got := secondsField(fields, "duration_seconds"); got != 90*time.Second {
		t.Errorf("secondsField() = %v", got)
	}
}
