// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	APIs    APIsConfig    `mapstructure:"apis"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// APIsConfig holds settings for the two provider integrations.
type APIsConfig struct {
	Tavily struct {
		APIKey     string `mapstructure:"api_key"`
		BaseURL    string `mapstructure:"base_url"`
		MaxResults int    `mapstructure:"max_results"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"tavily"`

	LLM struct {
		APIKey    string `mapstructure:"api_key"`
		BaseURL   string `mapstructure:"base_url"`
		Model     string `mapstructure:"model"`
		MaxTokens int    `mapstructure:"max_tokens"`
		Timeout   int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"llm"`
}

// EngineConfig holds the core loop settings.
type EngineConfig struct {
	MaxRounds              int `mapstructure:"max_rounds"`
	MaxConversationHistory int `mapstructure:"max_conversation_history"`
}

// CacheConfig holds settings for the optional search-response cache.
type CacheConfig struct {
	Redis struct {
		Enabled    bool   `mapstructure:"enabled"`
		Address    string `mapstructure:"address"`
		Password   string `mapstructure:"password"`
		DB         int    `mapstructure:"db"`
		TTLSeconds int    `mapstructure:"ttl_seconds"`
	} `mapstructure:"redis"`
}

// ArchiveConfig holds settings for the optional report archive.
type ArchiveConfig struct {
	Elasticsearch struct {
		Enabled   bool     `mapstructure:"enabled"`
		Addresses []string `mapstructure:"addresses"`
		Username  string   `mapstructure:"username"`
		Password  string   `mapstructure:"password"`
		Index     string   `mapstructure:"index"`
	} `mapstructure:"elasticsearch"`
}

// MetricsConfig holds settings for the prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
