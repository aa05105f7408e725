package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment     string        `toml:"environment"`       // "development" or "production" - controls test URL validation
	DeleteOnStartup []string      `toml:"delete_on_startup"` // Delete data categories on startup. Valid values: jobs (default: empty = delete nothing)
	Server          ServerConfig  `toml:"server"`
	Storage         StorageConfig `toml:"storage"`
	Jobs            JobsConfig    `toml:"jobs"`
	Logging         LoggingConfig `toml:"logging"`
	Crawler         CrawlerConfig `toml:"crawler"`
	Citations       CitationsConfig `toml:"citations"`
	Gemini          GeminiConfig  `toml:"gemini"`
	Claude          ClaudeConfig  `toml:"claude"`
	LLM             LLMConfig     `toml:"llm"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Sqlite SqliteConfig `toml:"sqlite"`
	Badger BadgerConfig `toml:"badger"`
}

// SqliteConfig locates the job-persistence database (spec.md §3.1, §7).
type SqliteConfig struct {
	Path string `toml:"path"` // Database file path
}

// BadgerConfig locates the durable key/value and sitemap-cache store
// (spec.md §4.2, §6).
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// JobsConfig controls the pipeline job manager's concurrency and
// retention (spec.md §4.5, §7).
type JobsConfig struct {
	Concurrency       int    `toml:"concurrency"`        // Max jobs running at once
	DefaultMaxMinutes int    `toml:"default_max_minutes"` // Default per-job timeout when a request omits one
	RetentionDays     int    `toml:"retention_days"`      // Terminal jobs older than this are swept
	CleanupSchedule   string `toml:"cleanup_schedule"`    // Cron schedule for the retention sweep
}

// CrawlerConfig controls the sitemap crawler (spec.md §4.2).
type CrawlerConfig struct {
	UserAgent         string        `toml:"user_agent"`
	RequestTimeout    time.Duration `toml:"request_timeout"`
	MaxURLs           int           `toml:"max_urls"`
	MaxCacheEntries   int           `toml:"max_cache_entries"`
	CacheTTL          time.Duration `toml:"cache_ttl"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
}

// CitationsConfig controls the citation URL prober (spec.md §4.4 stage 4).
type CitationsConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// GeminiConfig contains unified Google Gemini API configuration for all AI services
type GeminiConfig struct {
	APIKey          string  `toml:"api_key"`          // Google Gemini API key for all AI operations
	Model           string  `toml:"model"`            // Model for article generation (default: "gemini-2.5-flash")
	EmbeddingModel  string  `toml:"embedding_model"`  // Model for similarity embeddings (default: "text-embedding-004")
	Timeout         string  `toml:"timeout"`          // Operation timeout as duration string (default: "5m")
	Temperature     float32 `toml:"temperature"`      // Generation temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration for AI services
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key for Claude operations
	Model       string  `toml:"model"`       // Model for review-stage rewrites (default: "claude-haiku-4-5")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // Default provider: "gemini" or "claude" (default: "gemini")
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in blogpipeline.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development", // Default to development mode - allows test URLs
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Sqlite: SqliteConfig{
				Path: "./data/jobs.db",
			},
			Badger: BadgerConfig{
				Path: "./data/kv",
			},
		},
		Jobs: JobsConfig{
			Concurrency:       3,
			DefaultMaxMinutes: 30,
			RetentionDays:     7,
			CleanupSchedule:   "0 0 * * * *", // hourly sweep
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Crawler: CrawlerConfig{
			UserAgent:         "blogpipeline-sitemap-crawler/1.0",
			RequestTimeout:    15 * time.Second,
			MaxURLs:           500,
			MaxCacheEntries:   100,
			CacheTTL:          24 * time.Hour,
			RequestsPerSecond: 2,
		},
		Citations: CitationsConfig{
			RequestsPerSecond: 5,
		},
		Gemini: GeminiConfig{
			APIKey:         "", // User must provide API key (no fallback)
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "text-embedding-004",
			Timeout:        "5m",
			Temperature:    0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-4-5",
			Timeout:     "5m",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// Priority system: CLI flags > Environment variables > Config file > Defaults
// kvStorage can be nil for backward compatibility (replacement will be skipped)
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files. Priority system: CLI flags > Environment variables > Last config file > ... > First config file > Defaults
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if kvStorage != nil {
		ctx := context.Background()
		kvMap, err := kvStorage.GetAll(ctx)
		if err != nil {
			logger := arbor.NewLogger()
			logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
		} else {
			logger := arbor.NewLogger()
			if err := ReplaceInStruct(config, kvMap, logger); err != nil {
				logger.Warn().Err(err).Msg("Failed to replace key references in config")
			} else {
				logger.Info().Int("keys", len(kvMap)).Msg("Applied key/value replacements to config")
			}
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BLOGPIPELINE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("BLOGPIPELINE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("BLOGPIPELINE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if sqlitePath := os.Getenv("BLOGPIPELINE_SQLITE_PATH"); sqlitePath != "" {
		config.Storage.Sqlite.Path = sqlitePath
	}
	if badgerPath := os.Getenv("BLOGPIPELINE_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if concurrency := os.Getenv("BLOGPIPELINE_JOBS_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Jobs.Concurrency = c
		}
	}
	if retention := os.Getenv("BLOGPIPELINE_JOBS_RETENTION_DAYS"); retention != "" {
		if r, err := strconv.Atoi(retention); err == nil {
			config.Jobs.RetentionDays = r
		}
	}

	if level := os.Getenv("BLOGPIPELINE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("BLOGPIPELINE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("BLOGPIPELINE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range splitString(output, ",") {
			if trimmed := trimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if userAgent := os.Getenv("BLOGPIPELINE_CRAWLER_USER_AGENT"); userAgent != "" {
		config.Crawler.UserAgent = userAgent
	}
	if maxURLs := os.Getenv("BLOGPIPELINE_CRAWLER_MAX_URLS"); maxURLs != "" {
		if mu, err := strconv.Atoi(maxURLs); err == nil {
			config.Crawler.MaxURLs = mu
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("BLOGPIPELINE_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("BLOGPIPELINE_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("BLOGPIPELINE_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if temperature := os.Getenv("BLOGPIPELINE_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("BLOGPIPELINE_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // app-specific prefix takes priority
	}
	if model := os.Getenv("BLOGPIPELINE_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if timeout := os.Getenv("BLOGPIPELINE_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if temperature := os.Getenv("BLOGPIPELINE_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}

	if provider := os.Getenv("BLOGPIPELINE_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables -> KV store -> config fallback -> error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"BLOGPIPELINE_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"anthropic_api_key": {"BLOGPIPELINE_CLAUDE_API_KEY"},
		"claude_api_key":    {"BLOGPIPELINE_CLAUDE_API_KEY"},
	}

	if name == "anthropic_api_key" || name == "claude_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// Helper functions for string manipulation
func splitString(s, sep string) []string {
	result := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if i+len(sep) <= len(s) && s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	result = append(result, s[start:])
	return result
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

// ValidateJobSchedule validates the jobs retention cron schedule (six
// fields, seconds first, as the job manager's cron parses it) and
// ensures it isn't tighter than a 5-minute interval, keeping the sweep
// off the hot path (spec.md §7).
func ValidateJobSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 6 {
		return fmt.Errorf("invalid cron format: expected 6 fields")
	}

	minuteField := parts[1]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// AllowTestURLs returns true if test URLs (localhost, 127.0.0.1, etc.) are allowed.
// Test URLs are only allowed in development mode.
func (c *Config) AllowTestURLs() bool {
	return !c.IsProduction()
}

// DeepCloneConfig creates a deep copy of the Config struct, used to
// prevent mutation of a shared config across goroutines.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.DeleteOnStartup) > 0 {
		clone.DeleteOnStartup = make([]string, len(c.DeleteOnStartup))
		copy(clone.DeleteOnStartup, c.DeleteOnStartup)
	}
	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	return &clone
}
