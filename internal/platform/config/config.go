// Package config はアプリケーション設定を .env ファイルと環境変数から読み込みます。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds every runtime setting of the server.
type Config struct {
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	RunMigrations bool   `mapstructure:"RUN_MIGRATIONS"`

	DB     DBConfig     `mapstructure:",squash"`
	Mongo  MongoConfig  `mapstructure:",squash"`
	Redis  RedisConfig  `mapstructure:",squash"`
	Market MarketConfig `mapstructure:",squash"`
	Ingest IngestConfig `mapstructure:",squash"`
}

// DBConfig はリレーショナルDBの接続設定です。
type DBConfig struct {
	Host       string `mapstructure:"DB_HOST"`
	Port       string `mapstructure:"DB_PORT"`
	User       string `mapstructure:"DB_USER"`
	Password   string `mapstructure:"DB_PASSWORD"`
	Name       string `mapstructure:"DB_NAME"`
	SSLMode    string `mapstructure:"DB_SSLMODE"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`
}

// MongoConfig はMongoDBの接続設定です。
type MongoConfig struct {
	URI           string `mapstructure:"MONGO_URI"`
	Database      string `mapstructure:"MONGO_DATABASE"`
	JobCollection string `mapstructure:"MONGO_JOB_COLLECTION"`
}

// RedisConfig is optional; an empty host disables the status cache.
type RedisConfig struct {
	Host     string        `mapstructure:"REDIS_HOST"`
	Port     string        `mapstructure:"REDIS_PORT"`
	Password string        `mapstructure:"REDIS_PASSWORD"`
	CacheTTL time.Duration `mapstructure:"STATUS_CACHE_TTL"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// MarketConfig はBinance APIの設定です。
type MarketConfig struct {
	BaseURL   string        `mapstructure:"BINANCE_BASE_URL"`
	APIKey    string        `mapstructure:"BINANCE_API_KEY"`
	APISecret string        `mapstructure:"BINANCE_API_SECRET"`
	Timeout   time.Duration `mapstructure:"BINANCE_TIMEOUT"`
}

// IngestConfig controls background ingestion.
type IngestConfig struct {
	// MaxParallel caps concurrent symbols per job; 0 means one goroutine per symbol.
	MaxParallel     int           `mapstructure:"INGEST_MAX_PARALLEL"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"PORT":                 "8080",
	"LOG_LEVEL":            "info",
	"STORAGE_DRIVER":       DriverPostgres,
	"RUN_MIGRATIONS":       false,
	"DB_HOST":              "localhost",
	"DB_PORT":              "5432",
	"DB_USER":              "",
	"DB_PASSWORD":          "",
	"DB_NAME":              "klines",
	"DB_SSLMODE":           "disable",
	"SQLITE_PATH":          "./klines.db",
	"MONGO_URI":            "mongodb://localhost:27017",
	"MONGO_DATABASE":       "klines",
	"MONGO_JOB_COLLECTION": "jobs",
	"REDIS_HOST":           "",
	"REDIS_PORT":           "6379",
	"REDIS_PASSWORD":       "",
	"STATUS_CACHE_TTL":     "10m",
	"BINANCE_BASE_URL":     "",
	"BINANCE_API_KEY":      "",
	"BINANCE_API_SECRET":   "",
	"BINANCE_TIMEOUT":      "15s",
	"INGEST_MAX_PARALLEL":  0,
	"SHUTDOWN_TIMEOUT":     "30s",
}

// Load reads envFile (optional, dotenv format) and then the process environment,
// which takes precedence.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading %s failed: %w", envFile, err)
			}
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	switch c.StorageDriver {
	case DriverPostgres, DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.Ingest.MaxParallel < 0 {
		return fmt.Errorf("INGEST_MAX_PARALLEL must not be negative")
	}
	if c.StorageDriver == DriverMongo {
		// kline collections are named after the pair, which is always [A-Z0-9]+
		if c.Mongo.JobCollection == "" || pairLike.MatchString(c.Mongo.JobCollection) {
			return fmt.Errorf("MONGO_JOB_COLLECTION %q would collide with a pair collection", c.Mongo.JobCollection)
		}
	}
	return nil
}

var pairLike = regexp.MustCompile(`^[A-Z0-9]+$`)
