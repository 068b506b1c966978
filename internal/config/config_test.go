// File path: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"LAPTOP_CONFIG_FILE",
	"LAPTOP_INDEX_PATH",
	"LAPTOP_METADATA_PATH",
	"LAPTOP_DB_PATH",
	"LAPTOP_INDEX_BACKEND",
	"LAPTOP_GENERATOR",
	"LAPTOP_EMBEDDER",
	"GOOGLE_API_KEY",
	"GEMINI_MODEL",
	"GEMINI_EMBED_MODEL",
	"OPENAI_API_KEY",
	"OPENAI_ENDPOINT",
	"OPENAI_CHAT_MODEL",
	"OPENAI_EMBED_MODEL",
	"OLLAMA_SERVER_URL",
	"OLLAMA_MODEL",
	"OLLAMA_EMBED_MODEL",
	"LAPTOP_TOP_K",
	"LAPTOP_HISTORY_TURNS",
	"LAPTOP_MAX_OUTPUT_TOKENS",
	"LAPTOP_FACT_CONCURRENCY",
	"LAPTOP_EMBED_CACHE_SIZE",
	"LAPTOP_MAX_PASSAGE_RUNES",
	"LAPTOP_TEMPERATURE",
	"LAPTOP_REQUEST_TIMEOUT",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	defaults := DefaultConfig()
	if cfg != defaults {
		t.Fatalf("LoadConfig defaults mismatch: %#v", cfg)
	}
	if cfg.HistoryTurns != 5 {
		t.Errorf("HistoryTurns = %d", cfg.HistoryTurns)
	}
	if cfg.TopK != 10 {
		t.Errorf("TopK = %d", cfg.TopK)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("LAPTOP_INDEX_PATH", "/tmp/laptops.index.json")
	t.Setenv("LAPTOP_DB_PATH", "/tmp/laptops.db")
	t.Setenv("LAPTOP_GENERATOR", "OpenAI")
	t.Setenv("GOOGLE_API_KEY", "secret")
	t.Setenv("LAPTOP_TOP_K", "3")
	t.Setenv("LAPTOP_TEMPERATURE", "0.2")
	t.Setenv("LAPTOP_REQUEST_TIMEOUT", "15s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IndexPath != "/tmp/laptops.index.json" {
		t.Errorf("IndexPath = %q", cfg.IndexPath)
	}
	if cfg.DBPath != "/tmp/laptops.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Generator != "openai" {
		t.Errorf("Generator = %q", cfg.Generator)
	}
	if cfg.GoogleAPIKey != "secret" {
		t.Errorf("GoogleAPIKey = %q", cfg.GoogleAPIKey)
	}
	if cfg.TopK != 3 {
		t.Errorf("TopK = %d", cfg.TopK)
	}
	if cfg.Temperature < 0.19 || cfg.Temperature > 0.21 {
		t.Errorf("Temperature = %v", cfg.Temperature)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "laptop.yaml")
	content := "metadata_path: /srv/meta.json\ntop_k: 7\nrequest_timeout: 2m\ngenerator: ollama\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LAPTOP_CONFIG_FILE", path)
	t.Setenv("LAPTOP_TOP_K", "4")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MetadataPath != "/srv/meta.json" {
		t.Errorf("MetadataPath = %q", cfg.MetadataPath)
	}
	if cfg.TopK != 4 {
		t.Errorf("env should win over file, TopK = %d", cfg.TopK)
	}
	if cfg.RequestTimeout != 2*time.Minute {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.Generator != "ollama" {
		t.Errorf("Generator = %q", cfg.Generator)
	}
}

func TestLoadConfigRejectsMalformedNumbers(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("LAPTOP_TOP_K", "ten")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected parse error for LAPTOP_TOP_K")
	}
}

func TestLoadConfigAppliesZeroTemperature(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("LAPTOP_TEMPERATURE", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Temperature != 0 {
		t.Fatalf("Temperature = %v, want 0", cfg.Temperature)
	}

	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "laptop.yaml")
	if err := os.WriteFile(path, []byte("temperature: 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LAPTOP_CONFIG_FILE", path)
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Temperature != 0 {
		t.Fatalf("file Temperature = %v, want 0", cfg.Temperature)
	}
}

func TestLoadConfigClampsHistoryTurns(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("LAPTOP_HISTORY_TURNS", "8")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HistoryTurns != 5 {
		t.Fatalf("HistoryTurns = %d, want 5", cfg.HistoryTurns)
	}
}
