package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"LegislativeClipping/internal/relevance"
)

const (
	defaultTimezone   = "America/Sao_Paulo"
	configPathEnv     = "CLIPPING_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_PATH"
	redisURLEnv       = "REDIS_URL"
	apiAddrEnv        = "API_ADDR"
	rulesetPathEnv    = "RULESET_PATH"
	logLevelEnv       = "LOG_LEVEL"
	logFileEnv        = "LOG_FILE"
	maxPagesEnv       = "MAX_PAGES_PER_SOURCE"
	maxExtractionEnv  = "MAX_EXTRACTION_PER_RUN"
	maxScoringEnv     = "MAX_SCORING_PER_RUN"
	scheduleEnv       = "SCHEDULE_CRON"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Cache         CacheConfig        `yaml:"cache"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	HTTP          HTTPConfig         `yaml:"http"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Scoring       ScoringConfig      `yaml:"scoring"`
	API           APIConfig          `yaml:"api"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// DatabaseConfig selects the SQL driver; DSN is a file path for sqlite.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// CacheConfig enables the Redis seen-link cache when URL is set.
type CacheConfig struct {
	RedisURL string        `yaml:"redisUrl"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HTTPConfig tunes the collector's outbound requests.
type HTTPConfig struct {
	UserAgent    string        `yaml:"userAgent"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryCount   int           `yaml:"retryCount"`
	RetryWait    time.Duration `yaml:"retryWait"`
	RetryMaxWait time.Duration `yaml:"retryMaxWait"`
	MinDelay     time.Duration `yaml:"minDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// PipelineConfig bounds the work done per run.
type PipelineConfig struct {
	MaxPagesPerSource   int `yaml:"maxPagesPerSource"`
	MaxExtractionPerRun int `yaml:"maxExtractionPerRun"`
	MaxScoringPerRun    int `yaml:"maxScoringPerRun"`
	Workers             int `yaml:"workers"`
}

// ScoringConfig points at the relevance ruleset; Ruleset is used when RulesetPath is empty.
type ScoringConfig struct {
	RulesetPath string             `yaml:"rulesetPath"`
	Ruleset     *relevance.Ruleset `yaml:"ruleset"`
}

// APIConfig configures the dashboard read API.
type APIConfig struct {
	Addr string `yaml:"addr"`
	Mode string `yaml:"mode"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig sets the slog level and an optional file sink.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SiteConfig describes a single portal with its scanner strategy.
type SiteConfig struct {
	Name     string            `yaml:"name"`
	Scanner  string            `yaml:"scanner"`
	BaseURL  string            `yaml:"baseUrl"`
	NewsURL  string            `yaml:"newsUrl"`
	MaxPages int               `yaml:"maxPages"`
	Options  map[string]string `yaml:"options"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg
}

// LoadRuleset resolves the scoring ruleset from file, inline config or defaults.
func (c Config) LoadRuleset() (relevance.Ruleset, error) {
	if c.Scoring.RulesetPath != "" {
		return relevance.LoadRuleset(c.Scoring.RulesetPath)
	}
	if c.Scoring.Ruleset != nil {
		return *c.Scoring.Ruleset, nil
	}
	return relevance.DefaultRuleset(), nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(redisURLEnv); v != "" {
		c.Cache.RedisURL = v
	}
	if v := os.Getenv(apiAddrEnv); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv(rulesetPathEnv); v != "" {
		c.Scoring.RulesetPath = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFileEnv); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv(scheduleEnv); v != "" {
		c.Scheduler.CronExpression = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	c.Pipeline.MaxPagesPerSource = envInt(maxPagesEnv, c.Pipeline.MaxPagesPerSource)
	c.Pipeline.MaxExtractionPerRun = envInt(maxExtractionEnv, c.Pipeline.MaxExtractionPerRun)
	c.Pipeline.MaxScoringPerRun = envInt(maxScoringEnv, c.Pipeline.MaxScoringPerRun)
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", name, raw, fallback)
		return fallback
	}
	return v
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Cache.RedisURL != "" {
		base.Cache.RedisURL = override.Cache.RedisURL
	}
	if override.Cache.Prefix != "" {
		base.Cache.Prefix = override.Cache.Prefix
	}
	if override.Cache.TTL > 0 {
		base.Cache.TTL = override.Cache.TTL
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.HTTP.UserAgent != "" {
		base.HTTP.UserAgent = override.HTTP.UserAgent
	}
	if override.HTTP.Timeout > 0 {
		base.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.RetryCount > 0 {
		base.HTTP.RetryCount = override.HTTP.RetryCount
	}
	if override.HTTP.RetryWait > 0 {
		base.HTTP.RetryWait = override.HTTP.RetryWait
	}
	if override.HTTP.RetryMaxWait > 0 {
		base.HTTP.RetryMaxWait = override.HTTP.RetryMaxWait
	}
	if override.HTTP.MinDelay > 0 {
		base.HTTP.MinDelay = override.HTTP.MinDelay
	}
	if override.HTTP.MaxDelay > 0 {
		base.HTTP.MaxDelay = override.HTTP.MaxDelay
	}

	if override.Pipeline.MaxPagesPerSource > 0 {
		base.Pipeline.MaxPagesPerSource = override.Pipeline.MaxPagesPerSource
	}
	if override.Pipeline.MaxExtractionPerRun > 0 {
		base.Pipeline.MaxExtractionPerRun = override.Pipeline.MaxExtractionPerRun
	}
	if override.Pipeline.MaxScoringPerRun > 0 {
		base.Pipeline.MaxScoringPerRun = override.Pipeline.MaxScoringPerRun
	}
	if override.Pipeline.Workers > 0 {
		base.Pipeline.Workers = override.Pipeline.Workers
	}

	if override.Scoring.RulesetPath != "" {
		base.Scoring.RulesetPath = override.Scoring.RulesetPath
	}
	if override.Scoring.Ruleset != nil {
		base.Scoring.Ruleset = override.Scoring.Ruleset
	}

	if override.API.Addr != "" {
		base.API.Addr = override.API.Addr
	}
	if override.API.Mode != "" {
		base.API.Mode = override.API.Mode
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/clipping_faciap.db"},
		Cache:    CacheConfig{Prefix: "clipping:seen:", TTL: 72 * time.Hour},
		Scheduler: SchedulerConfig{
			CronExpression: "0 12,20 * * 1-5",
			Timezone:       defaultTimezone,
		},
		HTTP: HTTPConfig{
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			Timeout:      10 * time.Second,
			RetryCount:   2,
			RetryWait:    time.Second,
			RetryMaxWait: 5 * time.Second,
			MinDelay:     time.Second,
			MaxDelay:     3 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxPagesPerSource:   5,
			MaxExtractionPerRun: 50,
			MaxScoringPerRun:    100,
			Workers:             4,
		},
		API:     APIConfig{Addr: "0.0.0.0:5000", Mode: "release"},
		Logging: LoggingConfig{Level: "info"},
		Sites: []SiteConfig{
			{
				Name:    "camara",
				Scanner: "camara",
				BaseURL: "https://www.camara.leg.br",
				NewsURL: "https://www.camara.leg.br/noticias/ultimas",
			},
			{
				Name:    "senado",
				Scanner: "senado",
				BaseURL: "https://www12.senado.leg.br",
				NewsURL: "https://www12.senado.leg.br/noticias/ultimas",
			},
			{
				Name:     "agencia_gov",
				Scanner:  "agencia_gov",
				BaseURL:  "https://agenciagov.ebc.com.br",
				NewsURL:  "https://agenciagov.ebc.com.br/noticias",
				MaxPages: 2,
			},
		},
	}
}
