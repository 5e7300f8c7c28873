package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	TV      TVConfig      `mapstructure:"tv"`
	Extract ExtractConfig `mapstructure:"extract"`
	Run     RunConfig     `mapstructure:"run"`
}

type StoreConfig struct {
	URL   string `mapstructure:"url"`
	Key   string `mapstructure:"key"`
	Table string `mapstructure:"table"`
}

type TVConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Exchange string `mapstructure:"exchange"`
}

type ExtractConfig struct {
	Backoff BackoffConfig `mapstructure:"backoff"`
}

type BackoffConfig struct {
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	RetryMax     int           `mapstructure:"retry_max"`
}

type RunConfig struct {
	SymbolListPath   string `mapstructure:"symbol_list_path"`
	HolidayListPath  string `mapstructure:"holiday_list_path"`
	MaxWorkers       int    `mapstructure:"max_workers"`
	IncrementalFetch bool   `mapstructure:"incremental_fetch"`
	IncrementalBars  int    `mapstructure:"incremental_fetch_bars"`
	FullRefreshBars  int    `mapstructure:"full_refresh_bars"`
	FullRefresh      bool   `mapstructure:"full_refresh"`
	ForceRun         bool   `mapstructure:"force_run"`
}

// NewConfig reads the optional config.yaml and merges it with environment
// variables. Environment variables take precedence over file values.
func NewConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("store.table", "trading_data")
	v.SetDefault("tv.base_url", "https://udf.tradingview.com")
	v.SetDefault("tv.exchange", "BIST")
	v.SetDefault("extract.backoff.retry_wait_min", 4*time.Second)
	v.SetDefault("extract.backoff.retry_wait_max", 10*time.Second)
	v.SetDefault("extract.backoff.retry_max", 2)
	v.SetDefault("run.max_workers", 5)
	v.SetDefault("run.incremental_fetch", true)
	v.SetDefault("run.incremental_fetch_bars", 100)
	v.SetDefault("run.full_refresh_bars", 5000)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// The config file is optional; env vars alone are a valid setup.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindings := map[string]string{
		"store.url":                  "STORE_URL",
		"store.key":                  "STORE_KEY",
		"store.table":                "TABLE_NAME",
		"tv.base_url":                "TV_BASE_URL",
		"tv.username":                "TV_USERNAME",
		"tv.password":                "TV_PASSWORD",
		"tv.exchange":                "EXCHANGE",
		"run.symbol_list_path":       "SYMBOL_LIST_PATH",
		"run.holiday_list_path":      "HOLIDAY_LIST_PATH",
		"run.max_workers":            "MAX_WORKERS",
		"run.incremental_fetch":      "INCREMENTAL_FETCH",
		"run.incremental_fetch_bars": "INCREMENTAL_FETCH_BARS",
		"run.full_refresh_bars":      "FULL_REFRESH_BARS",
		"run.force_run":              "FORCE_RUN",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Store.URL == "" {
		missing = append(missing, "STORE_URL")
	}
	// A remote Supabase store needs a service key; local DuckDB paths do not.
	if c.Store.Key == "" && strings.HasPrefix(c.Store.URL, "http") {
		missing = append(missing, "STORE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Run.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1, got %d", c.Run.MaxWorkers)
	}
	return nil
}
