// File path: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every setting the laptop insights service needs at startup.
// Paths and credentials may be empty: the artifact loader reports them as
// readiness faults instead of failing configuration.
type Config struct {
	IndexPath    string `yaml:"index_path"`
	MetadataPath string `yaml:"metadata_path"`
	DBPath       string `yaml:"db_path"`
	IndexBackend string `yaml:"index_backend"`

	Generator string `yaml:"generator"`
	Embedder  string `yaml:"embedder"`

	GoogleAPIKey     string `yaml:"google_api_key"`
	GeminiModel      string `yaml:"gemini_model"`
	GeminiEmbedModel string `yaml:"gemini_embed_model"`

	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenAIEndpoint   string `yaml:"openai_endpoint"`
	OpenAIChatModel  string `yaml:"openai_chat_model"`
	OpenAIEmbedModel string `yaml:"openai_embed_model"`

	OllamaServerURL  string `yaml:"ollama_server_url"`
	OllamaModel      string `yaml:"ollama_model"`
	OllamaEmbedModel string `yaml:"ollama_embed_model"`

	TopK            int     `yaml:"top_k"`
	HistoryTurns    int     `yaml:"history_turns"`
	Temperature     float32 `yaml:"temperature"`
	// TemperatureSet marks Temperature as explicitly configured, so that an
	// override of 0 is applied by Merge.
	TemperatureSet bool `yaml:"-"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	FactConcurrency int     `yaml:"fact_concurrency"`
	EmbedCacheSize  int     `yaml:"embed_cache_size"`
	MaxPassageRunes int     `yaml:"max_passage_runes"`

	RequestTimeout       time.Duration `yaml:"-"`
	RequestTimeoutString string        `yaml:"request_timeout"`
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		IndexPath:        filepath.Join("data", "laptops.index.json"),
		MetadataPath:     filepath.Join("data", "laptops_metadata.json"),
		DBPath:           filepath.Join("data", "laptops_dynamic.db"),
		IndexBackend:     "flat",
		Generator:        "gemini",
		Embedder:         "gemini",
		GeminiModel:      "gemini-2.5-flash",
		GeminiEmbedModel: "text-embedding-004",
		OpenAIChatModel:  "gpt-4o-mini",
		OpenAIEmbedModel: "text-embedding-3-small",
		OllamaServerURL:  "http://127.0.0.1:11434",
		OllamaModel:      "llama3.1",
		OllamaEmbedModel: "nomic-embed-text",
		TopK:             10,
		HistoryTurns:     5,
		Temperature:      0.5,
		MaxOutputTokens:  2048,
		FactConcurrency:  4,
		EmbedCacheSize:   256,
		RequestTimeout:   60 * time.Second,
	}
}

// Merge overlays the non-zero fields of override onto c.
func (c Config) Merge(override Config) Config {
	result := c
	mergeString(&result.IndexPath, override.IndexPath)
	mergeString(&result.MetadataPath, override.MetadataPath)
	mergeString(&result.DBPath, override.DBPath)
	mergeString(&result.IndexBackend, strings.ToLower(override.IndexBackend))
	mergeString(&result.Generator, strings.ToLower(override.Generator))
	mergeString(&result.Embedder, strings.ToLower(override.Embedder))
	mergeString(&result.GoogleAPIKey, override.GoogleAPIKey)
	mergeString(&result.GeminiModel, override.GeminiModel)
	mergeString(&result.GeminiEmbedModel, override.GeminiEmbedModel)
	mergeString(&result.OpenAIAPIKey, override.OpenAIAPIKey)
	mergeString(&result.OpenAIEndpoint, override.OpenAIEndpoint)
	mergeString(&result.OpenAIChatModel, override.OpenAIChatModel)
	mergeString(&result.OpenAIEmbedModel, override.OpenAIEmbedModel)
	mergeString(&result.OllamaServerURL, override.OllamaServerURL)
	mergeString(&result.OllamaModel, override.OllamaModel)
	mergeString(&result.OllamaEmbedModel, override.OllamaEmbedModel)
	if override.TopK > 0 {
		result.TopK = override.TopK
	}
	if override.HistoryTurns > 0 {
		result.HistoryTurns = override.HistoryTurns
	}
	if override.TemperatureSet || override.Temperature > 0 {
		result.Temperature = override.Temperature
	}
	if override.MaxOutputTokens > 0 {
		result.MaxOutputTokens = override.MaxOutputTokens
	}
	if override.FactConcurrency > 0 {
		result.FactConcurrency = override.FactConcurrency
	}
	if override.EmbedCacheSize > 0 {
		result.EmbedCacheSize = override.EmbedCacheSize
	}
	if override.MaxPassageRunes > 0 {
		result.MaxPassageRunes = override.MaxPassageRunes
	}
	if override.RequestTimeout > 0 {
		result.RequestTimeout = override.RequestTimeout
	}
	mergeString(&result.RequestTimeoutString, override.RequestTimeoutString)
	return result
}

func mergeString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

// LoadConfig builds a Config from defaults, the optional YAML file named by
// LAPTOP_CONFIG_FILE and environment variables, in that order.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv("LAPTOP_CONFIG_FILE")); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.RequestTimeoutString != "" {
		if parsed, err := time.ParseDuration(c.RequestTimeoutString); err == nil && parsed > 0 {
			c.RequestTimeout = parsed
		}
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.TopK <= 0 {
		c.TopK = defaults.TopK
	}
	// The history window is capped at the default; larger values are clamped.
	if c.HistoryTurns <= 0 || c.HistoryTurns > defaults.HistoryTurns {
		c.HistoryTurns = defaults.HistoryTurns
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = defaults.MaxOutputTokens
	}
	if c.FactConcurrency <= 0 {
		c.FactConcurrency = defaults.FactConcurrency
	}
	if c.EmbedCacheSize <= 0 {
		c.EmbedCacheSize = defaults.EmbedCacheSize
	}
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	var explicit struct {
		Temperature *float32 `yaml:"temperature"`
	}
	if err := yaml.Unmarshal(data, &explicit); err == nil && explicit.Temperature != nil {
		cfg.TemperatureSet = true
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{
		IndexPath:        os.Getenv("LAPTOP_INDEX_PATH"),
		MetadataPath:     os.Getenv("LAPTOP_METADATA_PATH"),
		DBPath:           os.Getenv("LAPTOP_DB_PATH"),
		IndexBackend:     os.Getenv("LAPTOP_INDEX_BACKEND"),
		Generator:        os.Getenv("LAPTOP_GENERATOR"),
		Embedder:         os.Getenv("LAPTOP_EMBEDDER"),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:      os.Getenv("GEMINI_MODEL"),
		GeminiEmbedModel: os.Getenv("GEMINI_EMBED_MODEL"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint:   os.Getenv("OPENAI_ENDPOINT"),
		OpenAIChatModel:  os.Getenv("OPENAI_CHAT_MODEL"),
		OpenAIEmbedModel: os.Getenv("OPENAI_EMBED_MODEL"),
		OllamaServerURL:  os.Getenv("OLLAMA_SERVER_URL"),
		OllamaModel:      os.Getenv("OLLAMA_MODEL"),
		OllamaEmbedModel: os.Getenv("OLLAMA_EMBED_MODEL"),
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"LAPTOP_TOP_K", &cfg.TopK},
		{"LAPTOP_HISTORY_TURNS", &cfg.HistoryTurns},
		{"LAPTOP_MAX_OUTPUT_TOKENS", &cfg.MaxOutputTokens},
		{"LAPTOP_FACT_CONCURRENCY", &cfg.FactConcurrency},
		{"LAPTOP_EMBED_CACHE_SIZE", &cfg.EmbedCacheSize},
		{"LAPTOP_MAX_PASSAGE_RUNES", &cfg.MaxPassageRunes},
	}
	for _, item := range ints {
		raw := strings.TrimSpace(os.Getenv(item.key))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", item.key, err)
		}
		*item.dst = value
	}
	if raw := strings.TrimSpace(os.Getenv("LAPTOP_TEMPERATURE")); raw != "" {
		value, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return Config{}, fmt.Errorf("parse LAPTOP_TEMPERATURE: %w", err)
		}
		cfg.Temperature = float32(value)
		cfg.TemperatureSet = true
	}
	if raw := strings.TrimSpace(os.Getenv("LAPTOP_REQUEST_TIMEOUT")); raw != "" {
		dur, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse LAPTOP_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = dur
		cfg.RequestTimeoutString = raw
	}
	return cfg, nil
}
