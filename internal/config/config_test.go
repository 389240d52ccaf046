package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_YAMLOverrideProjectDefaults(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "cfgtest")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cfgContent := `
project:
  name: acme-docs
  collectionPrefix: acme
  vectorSize: 768
cache:
  redisAddr: "cache.internal:6379"
`
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	old := os.Getenv("CONFIG_FILE")
	defer func() { _ = os.Setenv("CONFIG_FILE", old) }()
	_ = os.Setenv("CONFIG_FILE", cfgPath)
	_ = os.Unsetenv("PROJECT_NAME")
	_ = os.Unsetenv("COLLECTION_PREFIX")
	_ = os.Unsetenv("VECTOR_SIZE")
	_ = os.Unsetenv("REDIS_ADDR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Project.Name != "acme-docs" || cfg.Project.CollectionPrefix != "acme" || cfg.Project.VectorSize != 768 {
		t.Errorf("unexpected project defaults: %+v", cfg.Project)
	}
	if cfg.Cache.RedisAddr != "cache.internal:6379" {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
}

func TestLoad_MissingConfigFileIsNotAnError(t *testing.T) {
	old := os.Getenv("CONFIG_FILE")
	defer func() { _ = os.Setenv("CONFIG_FILE", old) }()
	_ = os.Setenv("CONFIG_FILE", filepath.Join(os.TempDir(), "does-not-exist.yaml"))

	if _, err := Load(); err != nil {
		t.Fatalf("expected no error for missing config file, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "bad.*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.WriteString("not: [invalid yaml"); err != nil {
		t.Fatalf("failed to write bad yaml: %v", err)
	}
	tmpFile.Close()

	old := os.Getenv("CONFIG_FILE")
	defer func() { _ = os.Setenv("CONFIG_FILE", old) }()
	_ = os.Setenv("CONFIG_FILE", tmpFile.Name())

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}
