// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like TAVILY_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if not found
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries .env in the working directory, its parents, and the
// project root so tests under internal/ pick it up too.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in yaml values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig applies well-known environment variables for values
// still empty after expansion.
func overrideEmptyConfig(cfg *Config) {
	if cfg.APIs.Tavily.APIKey == "" {
		if val := os.Getenv("TAVILY_API_KEY"); val != "" {
			cfg.APIs.Tavily.APIKey = val
		}
	}

	if cfg.APIs.LLM.APIKey == "" {
		if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
			cfg.APIs.LLM.APIKey = val
		}
	}
	if cfg.APIs.LLM.BaseURL == "" {
		if val := os.Getenv("DEEPSEEK_BASE_URL"); val != "" {
			cfg.APIs.LLM.BaseURL = val
		}
	}
	if cfg.APIs.LLM.Model == "" {
		if val := os.Getenv("DEEPSEEK_MODEL"); val != "" {
			cfg.APIs.LLM.Model = val
		}
	}

	if cfg.APIs.Tavily.MaxResults == 0 {
		if val := os.Getenv("MAX_SEARCH_RESULTS"); val != "" {
			fmt.Sscanf(val, "%d", &cfg.APIs.Tavily.MaxResults)
		}
	}
	if cfg.Engine.MaxConversationHistory == 0 {
		if val := os.Getenv("MAX_CONVERSATION_HISTORY"); val != "" {
			fmt.Sscanf(val, "%d", &cfg.Engine.MaxConversationHistory)
		}
	}

	if cfg.Cache.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Cache.Redis.Address = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "deepsearch"
	}

	// Provider defaults
	if cfg.APIs.Tavily.BaseURL == "" {
		cfg.APIs.Tavily.BaseURL = "https://api.tavily.com"
	}
	if cfg.APIs.Tavily.MaxResults == 0 {
		cfg.APIs.Tavily.MaxResults = 10
	}
	if cfg.APIs.Tavily.Timeout == 0 {
		cfg.APIs.Tavily.Timeout = 10000
	}

	if cfg.APIs.LLM.BaseURL == "" {
		cfg.APIs.LLM.BaseURL = "https://api.deepseek.com"
	}
	if cfg.APIs.LLM.Model == "" {
		cfg.APIs.LLM.Model = "deepseek-chat"
	}
	if cfg.APIs.LLM.Timeout == 0 {
		cfg.APIs.LLM.Timeout = 60000
	}

	// Engine defaults
	if cfg.Engine.MaxRounds == 0 {
		cfg.Engine.MaxRounds = 5
	}
	if cfg.Engine.MaxConversationHistory == 0 {
		cfg.Engine.MaxConversationHistory = 20
	}

	// Cache defaults
	if cfg.Cache.Redis.TTLSeconds == 0 {
		cfg.Cache.Redis.TTLSeconds = 600
	}

	// Archive defaults
	if cfg.Archive.Elasticsearch.Index == "" {
		cfg.Archive.Elasticsearch.Index = "deepsearch-reports"
	}

	// Metrics defaults
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":2112"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.APIs.Tavily.APIKey == "" {
		return fmt.Errorf("apis.tavily.api_key is required (TAVILY_API_KEY)")
	}
	if cfg.APIs.LLM.APIKey == "" {
		return fmt.Errorf("apis.llm.api_key is required (DEEPSEEK_API_KEY)")
	}

	if cfg.Engine.MaxRounds < 1 || cfg.Engine.MaxRounds > 10 {
		return fmt.Errorf("engine.max_rounds must be between 1 and 10")
	}

	if cfg.Cache.Redis.Enabled && cfg.Cache.Redis.Address == "" {
		return fmt.Errorf("cache.redis.address is required when the cache is enabled")
	}

	if cfg.Archive.Elasticsearch.Enabled && len(cfg.Archive.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("archive.elasticsearch.addresses is required when the archive is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
