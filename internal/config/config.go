package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Plans      PlansConfig      `yaml:"plans" mapstructure:"plans"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Messenger  MessengerConfig  `yaml:"messenger" mapstructure:"messenger"`
	Scorer     ScorerConfig     `yaml:"scorer" mapstructure:"scorer"`
	Worker     WorkerConfig     `yaml:"worker" mapstructure:"worker"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string   `yaml:"host" mapstructure:"host"`
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min" mapstructure:"rate_limit_per_min"`
	Environment     string   `yaml:"environment" mapstructure:"environment"`
}

// AuthConfig configures token signing and password policy.
type AuthConfig struct {
	SecretKey                string `yaml:"secret_key" mapstructure:"secret_key"`
	Algorithm                string `yaml:"algorithm" mapstructure:"algorithm"`
	AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes" mapstructure:"access_token_expire_minutes"`
	RefreshTokenExpireDays   int    `yaml:"refresh_token_expire_days" mapstructure:"refresh_token_expire_days"`
}

// PlansConfig is the plan catalog loaded once at startup.
type PlansConfig struct {
	Default    string     `yaml:"default" mapstructure:"default"`
	Free       PlanConfig `yaml:"free" mapstructure:"free"`
	Pro        PlanConfig `yaml:"pro" mapstructure:"pro"`
	Enterprise PlanConfig `yaml:"enterprise" mapstructure:"enterprise"`
}

// PlanConfig holds one plan tier's daily cap and feature flags.
type PlanConfig struct {
	MaxLeadsPerDay int  `yaml:"max_leads_per_day" mapstructure:"max_leads_per_day"`
	CanExport      bool `yaml:"can_export" mapstructure:"can_export"`
	CanUseAI       bool `yaml:"can_use_ai" mapstructure:"can_use_ai"`
}

// ScrapeConfig configures the tiered scraper.
type ScrapeConfig struct {
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes     int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HeadlessEnabled  bool    `yaml:"headless_enabled" mapstructure:"headless_enabled"`
	HeadlessWaitSecs int     `yaml:"headless_wait_secs" mapstructure:"headless_wait_secs"`
	HostRatePerSec   float64 `yaml:"host_rate_per_sec" mapstructure:"host_rate_per_sec"`
	HostRateBurst    int     `yaml:"host_rate_burst" mapstructure:"host_rate_burst"`
}

// LLMConfig holds the language model API settings shared by the enricher
// and the messenger. An empty key disables all LLM paths.
type LLMConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MessengerConfig configures outreach message generation.
type MessengerConfig struct {
	SenderOrg string `yaml:"sender_org" mapstructure:"sender_org"`
}

// ScorerConfig configures lead scoring.
type ScorerConfig struct {
	CriteriaFile string `yaml:"criteria_file" mapstructure:"criteria_file"`
}

// WorkerConfig configures the pipeline worker pool.
type WorkerConfig struct {
	PollIntervalSecs int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	Concurrency      int `yaml:"concurrency" mapstructure:"concurrency"`
	JobTimeoutSecs   int `yaml:"job_timeout_secs" mapstructure:"job_timeout_secs"`
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoffSecs int `yaml:"retry_backoff_secs" mapstructure:"retry_backoff_secs"`
}

// SalesforceConfig holds Salesforce JWT auth settings. CRM push is enabled
// when ClientID is set.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADBOOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_min", 120)
	v.SetDefault("server.environment", "production")
	// Register keys that have no meaningful default so AutomaticEnv
	// overrides are visible to Unmarshal (viper only surfaces known keys).
	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.algorithm", "HS256")
	v.SetDefault("auth.access_token_expire_minutes", 30)
	v.SetDefault("auth.refresh_token_expire_days", 7)
	v.SetDefault("plans.default", "free")
	v.SetDefault("plans.free.max_leads_per_day", 10)
	v.SetDefault("plans.free.can_export", false)
	v.SetDefault("plans.free.can_use_ai", false)
	v.SetDefault("plans.pro.max_leads_per_day", 500)
	v.SetDefault("plans.pro.can_export", true)
	v.SetDefault("plans.pro.can_use_ai", true)
	v.SetDefault("plans.enterprise.max_leads_per_day", 10000)
	v.SetDefault("plans.enterprise.can_export", true)
	v.SetDefault("plans.enterprise.can_use_ai", true)
	v.SetDefault("scrape.timeout_secs", 25)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scrape.max_body_bytes", 2*1024*1024)
	v.SetDefault("scrape.headless_enabled", true)
	v.SetDefault("scrape.headless_wait_secs", 3)
	v.SetDefault("scrape.host_rate_per_sec", 2.0)
	v.SetDefault("scrape.host_rate_burst", 4)
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.timeout_secs", 30)
	v.SetDefault("messenger.sender_org", "Our Company")
	v.SetDefault("worker.poll_interval_secs", 2)
	v.SetDefault("worker.concurrency", 3)
	v.SetDefault("worker.job_timeout_secs", 120)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.retry_backoff_secs", 60)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
