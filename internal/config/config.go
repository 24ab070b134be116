package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64

	ModelLoadDelay     time.Duration
	InferenceDelay     time.Duration
	RevealDelay        time.Duration
	InferenceWorkers   int
	InferenceQueueSize int

	SessionTTL          time.Duration
	RecommendationsPath string

	ImageFetchTimeout time.Duration
	PreviewSize       int
	PreviewFileRoot   string

	AzureAccount string
	AzureKey     string

	LogLevel string
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     30 * time.Second,
		MaxRequestBodySize: 10 * 1024 * 1024, // 10MB
		ModelLoadDelay:     time.Second,
		InferenceDelay:     5 * time.Second,
		RevealDelay:        2 * time.Second,
		InferenceWorkers:   4,
		InferenceQueueSize: 16,
		SessionTTL:         10 * time.Minute,
		ImageFetchTimeout:  15 * time.Second,
		PreviewSize:        256,
		LogLevel:           "info",
	}
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// FilePreviewsEnabled reports whether file:// previews are served from
// PreviewFileRoot.
func (c *Config) FilePreviewsEnabled() bool {
	return c.PreviewFileRoot != ""
}

// AzureEnabled reports whether blob previews can be served.
func (c *Config) AzureEnabled() bool {
	return c.AzureAccount != "" && c.AzureKey != ""
}

// Load builds the configuration from defaults, the TOML file named by
// CONFIG_PATH (if set) and the environment, in that order.
func Load() (*Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, session=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.SessionTTL)
	}
	if c.ModelLoadDelay < 0 || c.InferenceDelay < 0 || c.RevealDelay < 0 {
		return fmt.Errorf("delays must be >= 0 (got load=%s, inference=%s, reveal=%s)",
			c.ModelLoadDelay, c.InferenceDelay, c.RevealDelay)
	}
	if c.InferenceWorkers <= 0 || c.InferenceQueueSize < 0 {
		return fmt.Errorf("INFERENCE_WORKERS must be > 0 and INFERENCE_QUEUE_SIZE >= 0 (got %d, %d)",
			c.InferenceWorkers, c.InferenceQueueSize)
	}
	if c.PreviewSize <= 0 {
		return fmt.Errorf("PREVIEW_SIZE must be > 0 (got %d)", c.PreviewSize)
	}
	if c.PreviewFileRoot != "" && !filepath.IsAbs(c.PreviewFileRoot) {
		return fmt.Errorf("PREVIEW_FILE_ROOT must be an absolute path (got %q)", c.PreviewFileRoot)
	}
	if (c.AzureAccount == "") != (c.AzureKey == "") {
		return errors.New("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.LogLevel)
	}
	return nil
}

// fileConfig mirrors the TOML layout. Durations are Go duration strings.
type fileConfig struct {
	Server struct {
		Host               string `toml:"host"`
		Port               string `toml:"port"`
		RequestTimeout     string `toml:"request_timeout"`
		MaxRequestBodySize int64  `toml:"max_request_body_size"`
		LogLevel           string `toml:"log_level"`
	} `toml:"server"`
	Pipeline struct {
		ModelLoadDelay      string `toml:"model_load_delay"`
		InferenceDelay      string `toml:"inference_delay"`
		RevealDelay         string `toml:"reveal_delay"`
		Workers             int    `toml:"workers"`
		QueueSize           *int   `toml:"queue_size"`
		RecommendationsPath string `toml:"recommendations_path"`
	} `toml:"pipeline"`
	Session struct {
		TTL string `toml:"ttl"`
	} `toml:"session"`
	Preview struct {
		Size         int    `toml:"size"`
		FetchTimeout string `toml:"fetch_timeout"`
		FileRoot     string `toml:"file_root"`
	} `toml:"preview"`
	Azure struct {
		Account string `toml:"account"`
		Key     string `toml:"key"`
	} `toml:"azure"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Host, fc.Server.Host)
	setString(&c.Port, fc.Server.Port)
	setString(&c.LogLevel, fc.Server.LogLevel)
	if fc.Server.MaxRequestBodySize != 0 {
		c.MaxRequestBodySize = fc.Server.MaxRequestBodySize
	}
	if fc.Pipeline.Workers != 0 {
		c.InferenceWorkers = fc.Pipeline.Workers
	}
	if fc.Pipeline.QueueSize != nil {
		c.InferenceQueueSize = *fc.Pipeline.QueueSize
	}
	setString(&c.RecommendationsPath, fc.Pipeline.RecommendationsPath)
	if fc.Preview.Size != 0 {
		c.PreviewSize = fc.Preview.Size
	}
	setString(&c.PreviewFileRoot, fc.Preview.FileRoot)
	setString(&c.AzureAccount, fc.Azure.Account)
	setString(&c.AzureKey, fc.Azure.Key)

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"server.request_timeout", fc.Server.RequestTimeout, &c.RequestTimeout},
		{"pipeline.model_load_delay", fc.Pipeline.ModelLoadDelay, &c.ModelLoadDelay},
		{"pipeline.inference_delay", fc.Pipeline.InferenceDelay, &c.InferenceDelay},
		{"pipeline.reveal_delay", fc.Pipeline.RevealDelay, &c.RevealDelay},
		{"session.ttl", fc.Session.TTL, &c.SessionTTL},
		{"preview.fetch_timeout", fc.Preview.FetchTimeout, &c.ImageFetchTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return fmt.Errorf("config file %s: invalid %s: %w", path, d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Host = getEnvOrDefault("HOST", c.Host)
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.RecommendationsPath = getEnvOrDefault("RECOMMENDATIONS_PATH", c.RecommendationsPath)
	c.PreviewFileRoot = getEnvOrDefault("PREVIEW_FILE_ROOT", c.PreviewFileRoot)
	c.AzureAccount = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", c.AzureAccount)
	c.AzureKey = getEnvOrDefault("AZURE_STORAGE_KEY", c.AzureKey)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REQUEST_TIMEOUT", &c.RequestTimeout},
		{"MODEL_LOAD_DELAY", &c.ModelLoadDelay},
		{"INFERENCE_DELAY", &c.InferenceDelay},
		{"REVEAL_DELAY", &c.RevealDelay},
		{"SESSION_TTL", &c.SessionTTL},
		{"IMAGE_FETCH_TIMEOUT", &c.ImageFetchTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = parseDurationOrDefault(d.key, *d.dst); err != nil {
			return err
		}
	}

	if c.MaxRequestBodySize, err = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", c.MaxRequestBodySize); err != nil {
		return err
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"INFERENCE_WORKERS", &c.InferenceWorkers},
		{"INFERENCE_QUEUE_SIZE", &c.InferenceQueueSize},
		{"PREVIEW_SIZE", &c.PreviewSize},
	}
	for _, i := range ints {
		v, err := parseIntOrDefault(i.key, int64(*i.dst))
		if err != nil {
			return err
		}
		*i.dst = int(v)
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func parseIntOrDefault(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return intValue, nil
}
