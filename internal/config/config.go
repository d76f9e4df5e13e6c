package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	AI         AIConfig         `mapstructure:"ai"`
	Sheets     SheetsConfig     `mapstructure:"sheets"`
	Storage    StorageConfig    `mapstructure:"storage"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	History    HistoryConfig    `mapstructure:"history"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type BotConfig struct {
	Token         string        `mapstructure:"token"`
	AdminID       int64         `mapstructure:"admin_id"`
	Webhook       WebhookConfig `mapstructure:"webhook"`
	UpdateTimeout int           `mapstructure:"update_timeout"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Port    int    `mapstructure:"port"`
}

type AIConfig struct {
	Model          string          `mapstructure:"model"`
	APIKeys        []string        `mapstructure:"api_keys"`
	Cooldown       time.Duration   `mapstructure:"cooldown"`
	Temperature    float64         `mapstructure:"temperature"`
	ShortMaxTokens int             `mapstructure:"short_max_tokens"`
	LongMaxTokens  int             `mapstructure:"long_max_tokens"`
	SystemPrompt   string          `mapstructure:"system_prompt"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	Secondary      SecondaryConfig `mapstructure:"secondary"`
}

// SecondaryConfig describes the OpenAI-compatible fallback endpoint tried
// once after every primary credential is exhausted.
type SecondaryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type SheetsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	SpreadsheetID   string        `mapstructure:"spreadsheet_id"`
	Range           string        `mapstructure:"range"`
	CredentialsJSON string        `mapstructure:"credentials_json"`
	LocalTTL        time.Duration `mapstructure:"local_ttl"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Memory MemoryConfig `mapstructure:"memory"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MemoryConfig struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type HistoryConfig struct {
	MaxTurns int           `mapstructure:"max_turns"`
	IdleTTL  time.Duration `mapstructure:"idle_ttl"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

// DefaultSystemPrompt is the Laila persona used when the config does not
// override it.
const DefaultSystemPrompt = `You are Laila, a charming, witty, and intelligent AI assistant. Your responses should be natural and engaging, making users feel like they are talking to a friend. You are a conversationalist, not just a question-answer machine.
Do NOT refer to yourself as an AI, a large language model, or any other technical term.

Personality & Rules:
1. Creator: Your creator is Adhyan. If anyone asks "who is your creator", respond with "My Creator is @AdhyanXlive". If anyone speaks ill of him, defend him gently but firmly. Do not praise him otherwise.
2. User Praise: If a user asks a question about themselves by name, respond with a friendly and positive compliment about them.
3. Date of Birth: If anyone asks for your birthday or date of birth, your response must be "My date of birth is 1st August 2025."
4. Lyrics: If a user asks for song lyrics, politely explain that you cannot guarantee the accuracy of song lyrics and suggest they use a reliable source like Google, Genius, or Spotify.
5. General Chat: For normal conversations, keep your replies short, around 1-2 sentences. The goal is to keep the chat flowing and engaging.
6. Specific Questions: If a user asks a factual, technical, or detailed question, provide a comprehensive, accurate, and insightful answer. In these cases, you can provide a longer response, but only if necessary.
7. Language: Always detect the user's language (Hindi, English, Hinglish) and respond in the same language.

Important: Your goal is to be a fun, smart, and loyal friend to the users, representing your creator's vision.`

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.SetEnvPrefix("")
	viper.BindEnv("bot.token", "BOT_TOKEN")
	viper.BindEnv("bot.admin_id", "ADMIN_ID")
	viper.BindEnv("bot.webhook.url", "WEBHOOK_URL")
	viper.BindEnv("sheets.spreadsheet_id", "SHEETS_SPREADSHEET_ID")
	viper.BindEnv("sheets.credentials_json", "SHEETS_CREDENTIALS")
	viper.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("storage.redis.db", "REDIS_DB")
	viper.BindEnv("ai.secondary.base_url", "SECONDARY_BASE_URL")
	viper.BindEnv("ai.secondary.api_key", "SECONDARY_API_KEY")
	viper.BindEnv("ai.secondary.model", "SECONDARY_MODEL")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Redis address assembled from split host/port variables.
	if redisHost := viper.GetString("REDIS_HOST"); redisHost != "" {
		redisPort := viper.GetString("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	// Gemini keys come either as a comma-separated list or as numbered
	// variables (GEMINI_API_KEY_1 .. GEMINI_API_KEY_N).
	if keys := loadAPIKeysFromEnv(); len(keys) > 0 {
		config.AI.APIKeys = keys
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func loadAPIKeysFromEnv() []string {
	if list := os.Getenv("GEMINI_API_KEYS"); list != "" {
		var keys []string
		for _, k := range strings.Split(list, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		return keys
	}

	var keys []string
	for i := 1; ; i++ {
		key := os.Getenv(fmt.Sprintf("GEMINI_API_KEY_%d", i))
		if key == "" {
			break
		}
		keys = append(keys, key)
	}
	return keys
}

func applyDefaults(cfg *Config) {
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-1.5-flash"
	}
	if cfg.AI.Cooldown <= 0 {
		cfg.AI.Cooldown = time.Hour
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.9
	}
	if cfg.AI.ShortMaxTokens == 0 {
		cfg.AI.ShortMaxTokens = 100
	}
	if cfg.AI.LongMaxTokens == 0 {
		cfg.AI.LongMaxTokens = 350
	}
	if cfg.AI.SystemPrompt == "" {
		cfg.AI.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 2 * time.Minute
	}
	if cfg.Sheets.Range == "" {
		cfg.Sheets.Range = "Sheet1!A:B"
	}
	if cfg.History.MaxTurns == 0 {
		cfg.History.MaxTurns = 20
	}
	if cfg.History.IdleTTL <= 0 {
		cfg.History.IdleTTL = 24 * time.Hour
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if len(cfg.AI.APIKeys) == 0 {
		return fmt.Errorf("at least one Gemini API key is required")
	}
	if cfg.Sheets.Enabled && cfg.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("sheets.spreadsheet_id is required when sheets storage is enabled")
	}
	return nil
}
