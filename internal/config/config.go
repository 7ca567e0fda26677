package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "INVESTRADAR_CONFIG"
	databasePathEnv  = "INVESTRADAR_DB_PATH"
	ollamaHostEnv    = "OLLAMA_HOST"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
)

// Config holds the resolved settings passed into every component at startup.
// Pipeline packages never read the environment or files themselves.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Feeds         []string           `yaml:"feeds"`
	ScrapeTargets []ScrapeTarget     `yaml:"scrapeTargets"`
	Market        MarketConfig       `yaml:"market"`
	Ollama        OllamaConfig       `yaml:"ollama"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig describes the SQLite file backing the article store and
// recommendation history.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines when the pipeline should run. An empty cron
// expression means a single immediate run.
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
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ScrapeTarget describes one listing page harvested with CSS selectors for
// sites that publish no usable feed.
type ScrapeTarget struct {
	Name            string `yaml:"name"`
	URL             string `yaml:"url"`
	TitleSelector   string `yaml:"titleSelector"`
	SummarySelector string `yaml:"summarySelector"`
}

// MarketConfig lists the tickers to quote and per-provider symbol notation.
type MarketConfig struct {
	Tickers       []string          `yaml:"tickers"`
	StooqSymbols  map[string]string `yaml:"stooqSymbols"`
	GoogleSymbols map[string]string `yaml:"googleSymbols"`
	Timeout       time.Duration     `yaml:"timeout"`
}

// OllamaConfig defines how to contact the local inference server and which
// model serves each analysis stage.
type OllamaConfig struct {
	BaseURL             string        `yaml:"baseUrl"`
	FilterModel         string        `yaml:"filterModel"`
	AnalysisModel       string        `yaml:"analysisModel"`
	FilterTemperature   float64       `yaml:"filterTemperature"`
	AnalysisTemperature float64       `yaml:"analysisTemperature"`
	RequestTimeout      time.Duration `yaml:"requestTimeout"`
	ReadyTimeout        time.Duration `yaml:"readyTimeout"`
}

// PipelineConfig tunes the run itself.
type PipelineConfig struct {
	RelevanceCutoff   float64       `yaml:"relevanceCutoff"`
	MaxArticleWords   int           `yaml:"maxArticleWords"`
	FilterConcurrency int           `yaml:"filterConcurrency"`
	HistoryLimit      int           `yaml:"historyLimit"`
	Retention         time.Duration `yaml:"retention"`
	FeedTimeout       time.Duration `yaml:"feedTimeout"`
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

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
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

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(ollamaHostEnv); v != "" {
		c.Ollama.BaseURL = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}
	if len(override.ScrapeTargets) > 0 {
		base.ScrapeTargets = override.ScrapeTargets
	}

	if len(override.Market.Tickers) > 0 {
		base.Market.Tickers = override.Market.Tickers
	}
	if len(override.Market.StooqSymbols) > 0 {
		base.Market.StooqSymbols = override.Market.StooqSymbols
	}
	if len(override.Market.GoogleSymbols) > 0 {
		base.Market.GoogleSymbols = override.Market.GoogleSymbols
	}
	if override.Market.Timeout > 0 {
		base.Market.Timeout = override.Market.Timeout
	}

	if override.Ollama.BaseURL != "" {
		base.Ollama.BaseURL = override.Ollama.BaseURL
	}
	if override.Ollama.FilterModel != "" {
		base.Ollama.FilterModel = override.Ollama.FilterModel
	}
	if override.Ollama.AnalysisModel != "" {
		base.Ollama.AnalysisModel = override.Ollama.AnalysisModel
	}
	if override.Ollama.FilterTemperature > 0 {
		base.Ollama.FilterTemperature = override.Ollama.FilterTemperature
	}
	if override.Ollama.AnalysisTemperature > 0 {
		base.Ollama.AnalysisTemperature = override.Ollama.AnalysisTemperature
	}
	if override.Ollama.RequestTimeout > 0 {
		base.Ollama.RequestTimeout = override.Ollama.RequestTimeout
	}
	if override.Ollama.ReadyTimeout > 0 {
		base.Ollama.ReadyTimeout = override.Ollama.ReadyTimeout
	}

	if override.Pipeline.RelevanceCutoff > 0 {
		base.Pipeline.RelevanceCutoff = override.Pipeline.RelevanceCutoff
	}
	if override.Pipeline.MaxArticleWords > 0 {
		base.Pipeline.MaxArticleWords = override.Pipeline.MaxArticleWords
	}
	if override.Pipeline.FilterConcurrency > 0 {
		base.Pipeline.FilterConcurrency = override.Pipeline.FilterConcurrency
	}
	if override.Pipeline.HistoryLimit > 0 {
		base.Pipeline.HistoryLimit = override.Pipeline.HistoryLimit
	}
	if override.Pipeline.Retention > 0 {
		base.Pipeline.Retention = override.Pipeline.Retention
	}
	if override.Pipeline.FeedTimeout > 0 {
		base.Pipeline.FeedTimeout = override.Pipeline.FeedTimeout
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{Path: "data/investradar.db"},
		Scheduler: SchedulerConfig{
			CronExpression: "0 8 1 * *",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Feeds: []string{
			"https://search.cnbc.com/rs/search/combinedcms/view.xml?partnerId=wrss01&id=100003114",
			"https://www.marketwatch.com/rss/topstories",
			"https://www.investing.com/rss/news.rss",
			"https://feeds.content.dowjones.io/public/rss/mw_topstories",
		},
		Market: MarketConfig{
			Tickers: []string{"^GSPC", "ACWI", "VWCE.DE", "IUSN.DE", "AGGH.DE", "SPY", "QQQ"},
			StooqSymbols: map[string]string{
				"^GSPC": "^SPX",
				"SPY":   "SPY.US",
				"QQQ":   "QQQ.US",
				"ACWI":  "ACWI.US",
			},
			GoogleSymbols: map[string]string{
				"^GSPC":   ".INX:INDEXSP",
				"SPY":     "SPY:NYSEARCA",
				"QQQ":     "QQQ:NASDAQ",
				"ACWI":    "ACWI:NASDAQ",
				"VWCE.DE": "VWCE:ETR",
				"IUSN.DE": "IUSN:ETR",
				"AGGH.DE": "AGGH:ETR",
			},
			Timeout: 30 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL:             "http://localhost:11434",
			FilterModel:         "phi3:mini",
			AnalysisModel:       "mistral:7b",
			FilterTemperature:   0.2,
			AnalysisTemperature: 0.4,
			RequestTimeout:      10 * time.Minute,
			ReadyTimeout:        2 * time.Minute,
		},
		Pipeline: PipelineConfig{
			RelevanceCutoff:   0.5,
			MaxArticleWords:   2000,
			FilterConcurrency: 4,
			HistoryLimit:      3,
			Retention:         365 * 24 * time.Hour,
			FeedTimeout:       30 * time.Second,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
