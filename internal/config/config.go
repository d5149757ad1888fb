package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Nardjo/leadster/internal/model"
)

// Config holds the full application configuration. It is built once at
// startup and passed into components at construction; nothing mutates it
// afterwards.
type Config struct {
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Enrich   EnrichConfig   `yaml:"enrich" mapstructure:"enrich"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Airtable AirtableConfig `yaml:"airtable" mapstructure:"airtable"`
	Mongo    MongoConfig    `yaml:"mongo" mapstructure:"mongo"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SearchConfig configures the geodata query.
type SearchConfig struct {
	Areas          []string         `yaml:"areas" mapstructure:"areas"`
	ShopTypes      []model.ShopType `yaml:"shop_types" mapstructure:"shop_types"`
	ExcludedBrands []string         `yaml:"excluded_brands" mapstructure:"excluded_brands"`
	Endpoints      []string         `yaml:"endpoints" mapstructure:"endpoints"`
	TimeoutSecs    int              `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the geodata request timeout.
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// EnrichConfig configures website scraping.
type EnrichConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	VerifyEmails bool   `yaml:"verify_emails" mapstructure:"verify_emails"`
}

// Timeout returns the per-fetch timeout.
func (c EnrichConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Pipeline modes. ModeScrape visits each candidate website for contact
// signals; ModeDirect emits candidates as-is, skipping enrichment.
const (
	ModeScrape = "scrape"
	ModeDirect = "direct"
)

// PipelineConfig configures run scheduling.
type PipelineConfig struct {
	Concurrency   int    `yaml:"concurrency" mapstructure:"concurrency"`
	ChunkSize     int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	RetryCount    int    `yaml:"retry_count" mapstructure:"retry_count"`
	RetryDelayMs  int    `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	ScrapeDelayMs int    `yaml:"scrape_delay_ms" mapstructure:"scrape_delay_ms"`
	Mode          string `yaml:"mode" mapstructure:"mode"` // "scrape" or "direct"
}

// RetryDelay returns the fixed inter-attempt retry delay.
func (c PipelineConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// ScrapeDelay returns the pause between sequential website requests.
func (c PipelineConfig) ScrapeDelay() time.Duration {
	return time.Duration(c.ScrapeDelayMs) * time.Millisecond
}

// StoreConfig configures the file-backed result store.
type StoreConfig struct {
	ResultsDir string `yaml:"results_dir" mapstructure:"results_dir"`
	DataDir    string `yaml:"data_dir" mapstructure:"data_dir"`
}

// AirtableConfig holds Airtable API credentials and table addressing.
type AirtableConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseID      string `yaml:"base_id" mapstructure:"base_id"`
	Table       string `yaml:"table" mapstructure:"table"`
	EndpointURL string `yaml:"endpoint_url" mapstructure:"endpoint_url"`
}

// MongoConfig holds document-database sink settings.
type MongoConfig struct {
	URI        string `yaml:"uri" mapstructure:"uri"`
	Database   string `yaml:"database" mapstructure:"database"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// DatabaseConfig holds relational sink settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultShopTypes is the shop taxonomy searched when none is configured.
var DefaultShopTypes = []model.ShopType{
	{Tag: "shop=clothes", Label: "Vêtements"},
	{Tag: "shop=bags", Label: "Maroquinerie"},
	{Tag: "shop=shoes", Label: "Chaussures"},
	{Tag: "shop=jewelry", Label: "Bijoux"},
	{Tag: "craft=jeweller", Label: "Bijoux"},
	{Tag: "shop=delicatessen", Label: "Épicerie Fine"},
	{Tag: "shop=books", Label: "Librairie"},
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("search.areas", []string{"Lyon", "Métropole de Lyon"})
	v.SetDefault("search.endpoints", []string{
		"https://overpass-api.de/api/interpreter",
		"https://overpass.kumi.systems/api/interpreter",
		"https://z.overpass-api.de/api/interpreter",
	})
	v.SetDefault("search.timeout_secs", 60)
	v.SetDefault("enrich.timeout_secs", 10)
	v.SetDefault("enrich.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("enrich.verify_emails", false)
	v.SetDefault("pipeline.concurrency", 5)
	v.SetDefault("pipeline.chunk_size", 100)
	v.SetDefault("pipeline.retry_count", 3)
	v.SetDefault("pipeline.retry_delay_ms", 1000)
	v.SetDefault("pipeline.scrape_delay_ms", 1000)
	v.SetDefault("pipeline.mode", ModeScrape)
	v.SetDefault("store.results_dir", "results")
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("airtable.table", "Shops")
	v.SetDefault("airtable.endpoint_url", "https://api.airtable.com/v0")
	v.SetDefault("mongo.database", "leadster")
	v.SetDefault("mongo.collection", "leads")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "leadster.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if len(cfg.Search.ShopTypes) == 0 {
		cfg.Search.ShopTypes = DefaultShopTypes
	}

	return &cfg, nil
}

// Validate checks settings that must be present before any work starts.
func (c *Config) Validate() error {
	if len(c.Search.Areas) == 0 {
		return eris.New("config: at least one search area is required")
	}
	if len(c.Search.Endpoints) == 0 {
		return eris.New("config: at least one geodata endpoint is required")
	}
	switch c.Pipeline.Mode {
	case ModeScrape, ModeDirect:
	default:
		return eris.Errorf("config: unknown pipeline mode %q", c.Pipeline.Mode)
	}
	return nil
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
