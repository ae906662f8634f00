package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server        ServerConfig              `mapstructure:"server"`
	Chat          ChatConfig                `mapstructure:"chat"`
	Providers     map[string]ProviderConfig `mapstructure:"providers"`
	Extraction    ExtractionConfig          `mapstructure:"extraction"`
	Lead          LeadConfig                `mapstructure:"lead"`
	Database      DatabaseConfig            `mapstructure:"database"`
	Redis         RedisConfig               `mapstructure:"redis"`
	Worker        WorkerConfig              `mapstructure:"worker"`
	Guidance      GuidanceConfig            `mapstructure:"guidance"`
	Backup        BackupConfig              `mapstructure:"backup"`
	Notify        NotifyConfig              `mapstructure:"notify"`
	Elasticsearch ElasticsearchConfig       `mapstructure:"elasticsearch"`
	Logging       LoggingConfig             `mapstructure:"logging"`
}

type ServerConfig struct {
	Address            string   `mapstructure:"address"`
	TurnTimeoutSeconds int      `mapstructure:"turn_timeout_seconds"`
	CORSOrigins        []string `mapstructure:"cors_origins"`
}

type ChatConfig struct {
	Provider         string  `mapstructure:"provider"`
	Temperature      float32 `mapstructure:"temperature"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	SystemPromptPath string  `mapstructure:"system_prompt_path"`
}

type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

type ExtractionConfig struct {
	MaxRetries    int `mapstructure:"max_retries"`
	BackoffBaseMS int `mapstructure:"backoff_base_ms"`
	CacheSize     int `mapstructure:"cache_size"`
	MaxTokens     int `mapstructure:"max_tokens"`
}

type LeadConfig struct {
	RequireProjectInfo bool `mapstructure:"require_project_info"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Params   string `mapstructure:"params"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a redis host is configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type WorkerConfig struct {
	MinWorkers         int `mapstructure:"min_workers"`
	MaxWorkers         int `mapstructure:"max_workers"`
	QueueSize          int `mapstructure:"queue_size"`
	IdleTimeoutSeconds int `mapstructure:"idle_timeout_seconds"`
}

type GuidanceConfig struct {
	SeedPath string `mapstructure:"seed_path"`
}

type BackupConfig struct {
	Dir string `mapstructure:"dir"`
}

type NotifyConfig struct {
	AWSRegion     string   `mapstructure:"aws_region"`
	SESSender     string   `mapstructure:"ses_sender"`
	SESRecipients []string `mapstructure:"ses_recipients"`
	SNSTopicARN   string   `mapstructure:"sns_topic_arn"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	LeadIndex string   `mapstructure:"lead_index"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TurnTimeout returns the per-turn deadline.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.Server.TurnTimeoutSeconds) * time.Second
}

// ExtractionBackoff returns the base delay between extraction retries.
func (c *Config) ExtractionBackoff() time.Duration {
	return time.Duration(c.Extraction.BackoffBaseMS) * time.Millisecond
}

// Load reads configuration from path, or from config.yaml in the working
// directory or ./configs when path is empty. Environment variables prefixed
// with PRESALES_ override file values.
func Load(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	v.SetEnvPrefix("PRESALES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnv(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Database.Driver == "sqlite3" && path != "" && !isMemoryDSN(cfg.Database.DSN) && !filepath.IsAbs(cfg.Database.DSN) {
		cfg.Database.DSN = filepath.Join(filepath.Dir(path), cfg.Database.DSN)
	}
	if path != "" && cfg.Guidance.SeedPath != "" && !filepath.IsAbs(cfg.Guidance.SeedPath) {
		cfg.Guidance.SeedPath = filepath.Join(filepath.Dir(path), cfg.Guidance.SeedPath)
	}
	return &cfg, nil
}

// loadEnvFile loads a .env file from the working directory when present.
func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// setDefaults covers keys where zero is a meaningful setting, so only an
// absent key falls back.
func setDefaults(v *viper.Viper) {
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("extraction.max_retries", 2)
}

// bindEnv registers keys that have no file value so AutomaticEnv can see them.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"server.address",
		"chat.provider",
		"database.driver",
		"database.dsn",
		"redis.host",
		"redis.port",
		"redis.password",
		"logging.level",
		"logging.format",
		"notify.aws_region",
		"notify.sns_topic_arn",
		"elasticsearch.lead_index",
		"providers.openai.api_key",
		"providers.openai.model",
		"providers.openai.base_url",
		"providers.claude.api_key",
		"providers.claude.model",
		"providers.gemini.api_key",
		"providers.gemini.model",
	} {
		_ = v.BindEnv(key)
	}
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.HasPrefix(dsn, "file:")
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8000"
	}
	if cfg.Server.TurnTimeoutSeconds <= 0 {
		cfg.Server.TurnTimeoutSeconds = 60
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	if cfg.Chat.Provider == "" {
		cfg.Chat.Provider = "openai"
	}
	if cfg.Chat.MaxTokens <= 0 {
		cfg.Chat.MaxTokens = 500
	}

	if cfg.Extraction.BackoffBaseMS <= 0 {
		cfg.Extraction.BackoffBaseMS = 1000
	}
	if cfg.Extraction.CacheSize <= 0 {
		cfg.Extraction.CacheSize = 4096
	}
	if cfg.Extraction.MaxTokens <= 0 {
		cfg.Extraction.MaxTokens = 50
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.Database.Driver == "sqlite3" && cfg.Database.DSN == "" {
		cfg.Database.DSN = "./data/chatbot.db"
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Redis.Enabled() && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Worker.MinWorkers <= 0 {
		cfg.Worker.MinWorkers = 2
	}
	if cfg.Worker.MaxWorkers < cfg.Worker.MinWorkers {
		cfg.Worker.MaxWorkers = cfg.Worker.MinWorkers * 4
	}
	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = 256
	}
	if cfg.Worker.IdleTimeoutSeconds <= 0 {
		cfg.Worker.IdleTimeoutSeconds = 30
	}

	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = "./data/backups"
	}
	if cfg.Elasticsearch.LeadIndex == "" {
		cfg.Elasticsearch.LeadIndex = "presales-leads"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite3", "mysql", "postgres":
	default:
		return fmt.Errorf("database.driver %q is not supported", cfg.Database.Driver)
	}
	if cfg.Database.Driver != "sqlite3" && cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.host or database.dsn is required for %s", cfg.Database.Driver)
	}
	switch cfg.Chat.Provider {
	case "openai", "claude", "gemini":
	default:
		return fmt.Errorf("chat.provider %q is not supported", cfg.Chat.Provider)
	}
	if cfg.Chat.Temperature < 0 || cfg.Chat.Temperature > 2 {
		return fmt.Errorf("chat.temperature must be within [0, 2]")
	}
	if cfg.Extraction.MaxRetries < 0 {
		return fmt.Errorf("extraction.max_retries must not be negative")
	}
	if len(cfg.Notify.SESRecipients) > 0 && cfg.Notify.SESSender == "" {
		return fmt.Errorf("notify.ses_sender is required when ses_recipients are set")
	}
	return nil
}
