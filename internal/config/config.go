package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Feed transports.
const (
	TransportHTTP    = "http"
	TransportBrowser = "browser"
)

// Storage drivers.
const (
	DriverBadger = "badger"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`

	JobsAPIURL         string        `mapstructure:"JOBS_API_URL"`
	JobsPageSize       int           `mapstructure:"JOBS_PAGE_SIZE"`
	JobsRequestTimeout time.Duration `mapstructure:"JOBS_REQUEST_TIMEOUT"`
	JobsRateLimit      float64       `mapstructure:"JOBS_RATE_LIMIT"`
	FeedTransport      string        `mapstructure:"FEED_TRANSPORT"`

	StorageDriver string        `mapstructure:"STORAGE_DRIVER"`
	BadgerDBPath  string        `mapstructure:"BADGERDB_PATH"`
	BadgerGCEvery time.Duration `mapstructure:"BADGERDB_GC_INTERVAL"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	BookmarksKey  string        `mapstructure:"BOOKMARKS_KEY"`
}

var defaults = map[string]interface{}{
	"TELEGRAM_BOT_TOKEN":   "",
	"LOG_LEVEL":            "info",
	"JOBS_API_URL":         "https://testapi.getlokalapp.com/common/jobs",
	"JOBS_PAGE_SIZE":       0,
	"JOBS_REQUEST_TIMEOUT": "15s",
	"JOBS_RATE_LIMIT":      2.0,
	"FEED_TRANSPORT":       TransportHTTP,
	"STORAGE_DRIVER":       DriverBadger,
	"BADGERDB_PATH":        "./badger_data",
	"BADGERDB_GC_INTERVAL": "5m",
	"REDIS_ADDR":           "localhost:6379",
	"REDIS_DB":             0,
	"BOOKMARKS_KEY":        "bookmarks",
}

// LoadConfig reads configuration from path/config.yaml and the environment.
// Environment variables override the file; a missing file is not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks required values and enumerations.
func (c Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch c.FeedTransport {
	case TransportHTTP, TransportBrowser:
	default:
		return fmt.Errorf("FEED_TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportBrowser, c.FeedTransport)
	}
	switch c.StorageDriver {
	case DriverBadger:
		if c.BadgerDBPath == "" {
			return fmt.Errorf("BADGERDB_PATH is required for the badger driver")
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of %q, %q, %q, got %q",
			DriverBadger, DriverRedis, DriverMemory, c.StorageDriver)
	}
	if c.JobsPageSize < 0 {
		return fmt.Errorf("JOBS_PAGE_SIZE must not be negative")
	}
	if c.JobsRateLimit < 0 {
		return fmt.Errorf("JOBS_RATE_LIMIT must not be negative")
	}
	if c.BookmarksKey == "" {
		return fmt.Errorf("BOOKMARKS_KEY must not be empty")
	}
	return nil
}

// Level returns the parsed log level. Validate has already rejected bad
// values, so a parse failure falls back to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
