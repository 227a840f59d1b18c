// Package config loads and validates process configuration from the
// environment, with .env file support for local development.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server     ServerConfig
	OpenRouter OpenRouterConfig
	Council    CouncilConfig
	Vortex     VortexConfig
	Notion     NotionConfig
	Pages      PagesConfig
	WordPress  WordPressConfig
	Storage    StorageConfig
	Retrieval  RetrievalConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port         int
	MaxBodyBytes int64
}

type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type CouncilConfig struct {
	Members             []string
	Chairman            string
	FallbackChairmen    []string
	TitleModel          string
	StageTimeout        time.Duration
	TitleTimeout        time.Duration
	RateLimitRetryDelay time.Duration
}

// VortexConfig selects and configures the legal-document backend: "mysql"
// for the production FULLTEXT store, "json_files" for development.
type VortexConfig struct {
	Type      string
	MySQLHost string
	MySQLPort int
	MySQLUser string
	MySQLPass string
	MySQLDB   string
	JSONDir   string
	MaxChunks int
}

type NotionConfig struct {
	Enabled bool
	APIKey  string
}

// PagesConfig lists published reference pages used as a supplementary
// retrieval source.
type PagesConfig struct {
	URLs []string
}

type WordPressConfig struct {
	APIKey         string
	AllowedOrigins []string
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	CacheTTL time.Duration
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads configuration from the environment. A .env file in the current
// or parent directory is loaded first if present.
func Load() (*Config, error) {
	loadDotEnv()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetInt("PORT"),
			MaxBodyBytes: v.GetInt64("MAX_BODY_BYTES"),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:  v.GetString("OPENROUTER_API_KEY"),
			BaseURL: v.GetString("OPENROUTER_BASE_URL"),
			Timeout: v.GetDuration("OPENROUTER_TIMEOUT"),
		},
		Council: CouncilConfig{
			Members:             stringList(v.GetString("COUNCIL_MODELS")),
			Chairman:            v.GetString("CHAIRMAN_MODEL"),
			FallbackChairmen:    stringList(v.GetString("FALLBACK_CHAIRMAN_MODELS")),
			TitleModel:          v.GetString("TITLE_MODEL"),
			StageTimeout:        v.GetDuration("STAGE_TIMEOUT"),
			TitleTimeout:        v.GetDuration("TITLE_TIMEOUT"),
			RateLimitRetryDelay: v.GetDuration("RATE_LIMIT_RETRY_DELAY"),
		},
		Vortex: VortexConfig{
			Type:      v.GetString("VORTEX_DB_TYPE"),
			MySQLHost: v.GetString("VORTEX_MYSQL_HOST"),
			MySQLPort: v.GetInt("VORTEX_MYSQL_PORT"),
			MySQLUser: v.GetString("VORTEX_MYSQL_USER"),
			MySQLPass: v.GetString("VORTEX_MYSQL_PASS"),
			MySQLDB:   v.GetString("VORTEX_MYSQL_DB"),
			JSONDir:   v.GetString("VORTEX_JSON_DIR"),
			MaxChunks: v.GetInt("VORTEX_MAX_CHUNKS"),
		},
		Notion: NotionConfig{
			Enabled: v.GetBool("NOTION_ENABLED"),
			APIKey:  v.GetString("NOTION_API_KEY"),
		},
		Pages: PagesConfig{
			URLs: stringList(v.GetString("REFERENCE_PAGE_URLS")),
		},
		WordPress: WordPressConfig{
			APIKey:         v.GetString("WP_API_KEY"),
			AllowedOrigins: stringList(v.GetString("ALLOWED_ORIGINS")),
		},
		Storage: StorageConfig{
			DataDir: v.GetString("DATA_DIR"),
		},
		Retrieval: RetrievalConfig{
			CacheTTL: v.GetDuration("RETRIEVAL_CACHE_TTL"),
		},
		Logging: LoggingConfig{
			Level:      v.GetString("LOG_LEVEL"),
			Format:     v.GetString("LOG_FORMAT"),
			OutputPath: v.GetString("LOG_OUTPUT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// stringList parses a comma-separated value, trimming whitespace around each
// entry and dropping empty ones.
func stringList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadDotEnv tries .env in the current directory, then the parent.
func loadDotEnv() {
	for _, envPath := range []string{".env", "../.env"} {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			if godotenv.Load(absPath) == nil {
				return
			}
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8001)
	v.SetDefault("MAX_BODY_BYTES", 1<<20)

	v.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("OPENROUTER_TIMEOUT", "120s")

	v.SetDefault("COUNCIL_MODELS", strings.Join([]string{
		"openai/gpt-5.1",
		"google/gemini-3-pro-preview",
		"anthropic/claude-sonnet-4.5",
		"x-ai/grok-4",
	}, ","))
	v.SetDefault("CHAIRMAN_MODEL", "google/gemini-3-pro-preview")
	v.SetDefault("FALLBACK_CHAIRMAN_MODELS", "")
	v.SetDefault("TITLE_MODEL", "google/gemini-2.5-flash")
	v.SetDefault("STAGE_TIMEOUT", "120s")
	v.SetDefault("TITLE_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_RETRY_DELAY", "2s")

	v.SetDefault("VORTEX_DB_TYPE", "mysql")
	v.SetDefault("VORTEX_MYSQL_HOST", "localhost")
	v.SetDefault("VORTEX_MYSQL_PORT", 3306)
	v.SetDefault("VORTEX_JSON_DIR", "data/vortex")
	v.SetDefault("VORTEX_MAX_CHUNKS", 10)

	v.SetDefault("NOTION_ENABLED", false)

	v.SetDefault("REFERENCE_PAGE_URLS", "")

	v.SetDefault("ALLOWED_ORIGINS", "https://thailawonline.com,https://www.thailawonline.com")

	v.SetDefault("DATA_DIR", "data/conversations")
	v.SetDefault("RETRIEVAL_CACHE_TTL", "5m")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
}

func (c *Config) validate() error {
	if c.OpenRouter.APIKey == "" {
		return errors.New("OPENROUTER_API_KEY environment variable is required")
	}
	if len(c.Council.Members) == 0 {
		return errors.New("COUNCIL_MODELS must list at least one model")
	}
	if c.Council.Chairman == "" {
		return errors.New("CHAIRMAN_MODEL is required")
	}
	switch c.Vortex.Type {
	case "mysql", "json_files":
	default:
		return errors.New("VORTEX_DB_TYPE must be \"mysql\" or \"json_files\"")
	}
	if c.Notion.Enabled && c.Notion.APIKey == "" {
		return errors.New("NOTION_API_KEY is required when NOTION_ENABLED is true")
	}
	return nil
}
