package config

import (
	"os"
	"testing"
)

func TestFirstNonEmpty(t *testing.T) {
	if v := firstNonEmpty("", "foo", "bar"); v != "foo" {
		t.Fatalf("expected 'foo', got %q", v)
	}
	if v := firstNonEmpty(); v != "" {
		t.Fatalf("expected empty, got %q", v)
	}
}

func TestIntFromEnv(t *testing.T) {
	key := "KC_TEST_INT_FROM_ENV"
	old := os.Getenv(key)
	defer func() {
		_ = os.Setenv(key, old)
	}()

	_ = os.Unsetenv(key)
	if got := intFromEnv(key, 7); got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}
	_ = os.Setenv(key, "123")
	if got := intFromEnv(key, 7); got != 123 {
		t.Fatalf("expected 123, got %d", got)
	}
	_ = os.Setenv(key, "notanint")
	if got := intFromEnv(key, 7); got != 7 {
		t.Fatalf("expected fallback to default on parse error, got %d", got)
	}
}

func TestBoolFromEnv(t *testing.T) {
	key := "KC_TEST_BOOL_FROM_ENV"
	old := os.Getenv(key)
	defer func() { _ = os.Setenv(key, old) }()

	_ = os.Unsetenv(key)
	if got := boolFromEnv(key, true); !got {
		t.Fatalf("expected default true")
	}
	_ = os.Setenv(key, "false")
	if got := boolFromEnv(key, true); got {
		t.Fatalf("expected false override")
	}
}

func TestParseHeadersEnv_JSONAndCSV(t *testing.T) {
	if got := parseHeadersEnv(`{"x-api-key":"abc"}`); got["x-api-key"] != "abc" {
		t.Fatalf("expected x-api-key abc, got %#v", got)
	}
	if got := parseHeadersEnv("x-api-key:abc,foo=bar"); got["x-api-key"] != "abc" || got["foo"] != "bar" {
		t.Fatalf("expected csv parse, got %#v", got)
	}
	if got := parseHeadersEnv(""); got != nil {
		t.Fatalf("expected nil for empty input, got %#v", got)
	}
}

func TestLoad_EmbeddingHeadersFromEnv(t *testing.T) {
	old := os.Getenv("EMBED_API_HEADERS")
	defer func() { _ = os.Setenv("EMBED_API_HEADERS", old) }()

	oldCfgFile := os.Getenv("CONFIG_FILE")
	defer func() { _ = os.Setenv("CONFIG_FILE", oldCfgFile) }()
	_ = os.Unsetenv("CONFIG_FILE")

	_ = os.Setenv("EMBED_API_HEADERS", `{"x-api-key":"abc"}`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.Embedding.Headers["x-api-key"]; got != "abc" {
		t.Fatalf("expected x-api-key abc, got %q", got)
	}

	_ = os.Setenv("EMBED_API_HEADERS", "x-api-key:abc,foo=bar")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.Embedding.Headers["foo"]; got != "bar" {
		t.Fatalf("expected foo bar, got %q", got)
	}
}
