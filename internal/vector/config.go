// File path: internal/vector/config.go
package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config describes how to reach the ChromaDB index backend.
type Config struct {
	Host       string `json:"host"`
	Port       string `json:"port"`
	Scheme     string `json:"scheme"`
	Collection string `json:"collection"`
	APIKey     string `json:"api_key"`

	Timeout       time.Duration `json:"-"`
	TimeoutString string        `json:"timeout"`

	HeartbeatRetries int           `json:"heartbeat_retries"`
	HeartbeatBackoff time.Duration `json:"-"`
	UpsertBatchSize  int           `json:"upsert_batch_size"`

	HTTPMaxIdleConns       int           `json:"http_max_idle_conns"`
	HTTPMaxIdlePerHost     int           `json:"http_max_idle_per_host"`
	HTTPMaxConnsPerHost    int           `json:"http_max_conns_per_host"`
	HTTPIdleConnTimeout    time.Duration `json:"-"`
	HTTPIdleConnTimeoutStr string        `json:"http_idle_conn_timeout"`
}

func (c Config) Merge(override Config) Config {
	result := c
	mergeString(&result.Host, override.Host)
	mergeString(&result.Port, override.Port)
	mergeString(&result.Scheme, override.Scheme)
	mergeString(&result.Collection, override.Collection)
	mergeString(&result.APIKey, override.APIKey)
	mergeString(&result.TimeoutString, override.TimeoutString)
	mergeString(&result.HTTPIdleConnTimeoutStr, override.HTTPIdleConnTimeoutStr)
	if override.Timeout > 0 {
		result.Timeout = override.Timeout
	}
	if override.HeartbeatRetries > 0 {
		result.HeartbeatRetries = override.HeartbeatRetries
	}
	if override.HeartbeatBackoff > 0 {
		result.HeartbeatBackoff = override.HeartbeatBackoff
	}
	if override.UpsertBatchSize > 0 {
		result.UpsertBatchSize = override.UpsertBatchSize
	}
	if override.HTTPMaxIdleConns > 0 {
		result.HTTPMaxIdleConns = override.HTTPMaxIdleConns
	}
	if override.HTTPMaxIdlePerHost > 0 {
		result.HTTPMaxIdlePerHost = override.HTTPMaxIdlePerHost
	}
	if override.HTTPMaxConnsPerHost > 0 {
		result.HTTPMaxConnsPerHost = override.HTTPMaxConnsPerHost
	}
	if override.HTTPIdleConnTimeout > 0 {
		result.HTTPIdleConnTimeout = override.HTTPIdleConnTimeout
	}
	return result
}

func mergeString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

// LoadConfig layers CHROMADB_CONFIG_FILE (JSON) and CHROMADB_* environment
// variables over the defaults.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("CHROMADB_CONFIG_FILE")); path != "" {
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
	if strings.TrimSpace(c.Host) == "" {
		c.Host = "localhost"
	}
	if strings.TrimSpace(c.Port) == "" {
		c.Port = "8000"
	}
	if strings.TrimSpace(c.Scheme) == "" {
		c.Scheme = "http"
	}
	if strings.TrimSpace(c.Collection) == "" {
		c.Collection = "laptop_specs"
	}
	c.Timeout = durationOr(c.Timeout, c.TimeoutString, 10*time.Second)
	c.HTTPIdleConnTimeout = durationOr(c.HTTPIdleConnTimeout, c.HTTPIdleConnTimeoutStr, 90*time.Second)
	if c.HeartbeatRetries <= 0 {
		c.HeartbeatRetries = 3
	}
	if c.HeartbeatBackoff <= 0 {
		c.HeartbeatBackoff = 250 * time.Millisecond
	}
	if c.UpsertBatchSize <= 0 {
		c.UpsertBatchSize = 256
	}
	if c.HTTPMaxIdleConns <= 0 {
		c.HTTPMaxIdleConns = 64
	}
	if c.HTTPMaxIdlePerHost <= 0 {
		c.HTTPMaxIdlePerHost = 16
	}
}

func durationOr(current time.Duration, raw string, fallback time.Duration) time.Duration {
	if current > 0 {
		return current
	}
	if raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read chromadb config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse chromadb config: %w", err)
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{
		Host:                   os.Getenv("CHROMADB_HOST"),
		Port:                   os.Getenv("CHROMADB_PORT"),
		Scheme:                 os.Getenv("CHROMADB_SCHEME"),
		Collection:             os.Getenv("CHROMADB_COLLECTION"),
		APIKey:                 os.Getenv("CHROMADB_API_KEY"),
		TimeoutString:          strings.TrimSpace(os.Getenv("CHROMADB_TIMEOUT")),
		HTTPIdleConnTimeoutStr: strings.TrimSpace(os.Getenv("CHROMADB_HTTP_IDLE_CONN_TIMEOUT")),
	}
	for key, dst := range map[string]*int{
		"CHROMADB_HEARTBEAT_RETRIES":       &cfg.HeartbeatRetries,
		"CHROMADB_UPSERT_BATCH_SIZE":       &cfg.UpsertBatchSize,
		"CHROMADB_HTTP_MAX_IDLE_CONNS":     &cfg.HTTPMaxIdleConns,
		"CHROMADB_HTTP_MAX_IDLE_PER_HOST":  &cfg.HTTPMaxIdlePerHost,
		"CHROMADB_HTTP_MAX_CONNS_PER_HOST": &cfg.HTTPMaxConnsPerHost,
	} {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", key, err)
		}
		if value > 0 {
			*dst = value
		}
	}
	if raw := strings.TrimSpace(os.Getenv("CHROMADB_HEARTBEAT_BACKOFF")); raw != "" {
		backoff, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHROMADB_HEARTBEAT_BACKOFF: %w", err)
		}
		cfg.HeartbeatBackoff = backoff
	}
	return cfg, nil
}
