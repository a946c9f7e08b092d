package common

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

// Config holds all application configuration
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Image      ImageConfig      `mapstructure:"image"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Store      StoreConfig      `mapstructure:"store"`
	Server     ServerConfig     `mapstructure:"server"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

// EngineConfig selects and configures the recognition engine.
type EngineConfig struct {
	Kind        string        `mapstructure:"kind"` // tesseract | http | gosseract | fixture
	Tesseract   string        `mapstructure:"tesseract"`
	Lang        string        `mapstructure:"lang"`
	TessdataDir string        `mapstructure:"tessdata_dir"`
	PSM         int           `mapstructure:"psm"`
	OEM         int           `mapstructure:"oem"`
	WorkDir     string        `mapstructure:"work_dir"`
	URL         string        `mapstructure:"url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	FixturePath string        `mapstructure:"fixture_path"`
}

// ImageConfig bounds decoding and preprocessing.
type ImageConfig struct {
	MaxBytes      int64         `mapstructure:"max_bytes"`
	MinBytes      int64         `mapstructure:"min_bytes"`
	MaxSide       int           `mapstructure:"max_side"`
	Preprocess    bool          `mapstructure:"preprocess"`
	Contrast      float64       `mapstructure:"contrast"`
	Sharpen       float64       `mapstructure:"sharpen"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	AllowInsecure bool          `mapstructure:"allow_insecure"` // permit plain http image URLs
}

// ExtractionConfig holds the weighting constants of classification and assembly.
type ExtractionConfig struct {
	InvalidFieldPenalty float64 `mapstructure:"invalid_field_penalty"`
	AmountTolerance     float64 `mapstructure:"amount_tolerance"`
	TypeWeight          float64 `mapstructure:"type_weight"`
	FieldWeight         float64 `mapstructure:"field_weight"`
}

// BatchConfig holds orchestrator limits.
type BatchConfig struct {
	DefaultParallel   int           `mapstructure:"default_parallel"`
	MaxParallel       int           `mapstructure:"max_parallel"`
	MaxBatchSize      int           `mapstructure:"max_batch_size"`
	ItemTimeout       time.Duration `mapstructure:"item_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	RetryMaxBackoff   time.Duration `mapstructure:"retry_max_backoff"`
	StatusRetention   time.Duration `mapstructure:"status_retention"`
	Archive           bool          `mapstructure:"archive"`
}

// CacheConfig selects the fingerprint cache backend.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // memory | redis | none
	TTL           time.Duration `mapstructure:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

// StoreConfig holds record repository configuration
type StoreConfig struct {
	Driver           string        `mapstructure:"driver"` // sqlite | postgres | none
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string `mapstructure:"grpc_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("engine.kind", "tesseract")
	v.SetDefault("engine.tesseract", "tesseract")
	v.SetDefault("engine.lang", "chi_sim+eng")
	v.SetDefault("engine.psm", 6)
	v.SetDefault("engine.work_dir", "./tmp")
	v.SetDefault("engine.timeout", 30*time.Second)
	v.SetDefault("engine.oem", 0)
	v.SetDefault("engine.tessdata_dir", "")
	v.SetDefault("engine.url", "")
	v.SetDefault("engine.api_key", "")
	v.SetDefault("engine.fixture_path", "")

	v.SetDefault("image.max_bytes", 10<<20)
	v.SetDefault("image.min_bytes", 0)
	v.SetDefault("image.max_side", 4096)
	v.SetDefault("image.preprocess", true)
	v.SetDefault("image.contrast", 20.0)
	v.SetDefault("image.sharpen", 0.5)
	v.SetDefault("image.fetch_timeout", 10*time.Second)
	v.SetDefault("image.allow_insecure", false)

	v.SetDefault("extraction.invalid_field_penalty", 0.5)
	v.SetDefault("extraction.amount_tolerance", 0.01)
	v.SetDefault("extraction.type_weight", 0.3)
	v.SetDefault("extraction.field_weight", 0.7)

	v.SetDefault("batch.default_parallel", 3)
	v.SetDefault("batch.max_parallel", 10)
	v.SetDefault("batch.max_batch_size", 50)
	v.SetDefault("batch.item_timeout", 30*time.Second)
	v.SetDefault("batch.requests_per_minute", 120)
	v.SetDefault("batch.burst", 5)
	v.SetDefault("batch.retry_attempts", 3)
	v.SetDefault("batch.retry_backoff", 500*time.Millisecond)
	v.SetDefault("batch.retry_max_backoff", 5*time.Second)
	v.SetDefault("batch.status_retention", time.Hour)
	v.SetDefault("batch.archive", false)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.key_prefix", "invoice_ocr:")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("store.driver", "none")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.statement_timeout", time.Duration(0))
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("store.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("store.dial_timeout", 3*time.Second)

	v.SetDefault("server.grpc_addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
}

// LoadConfig reads .env, an optional config file and INVOICE_OCR_* environment
// variables, in increasing precedence. An empty path searches ./invoice-ocr.yaml.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("invoice-ocr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("INVOICE_OCR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Engine.Kind {
	case "tesseract", "gosseract", "fixture":
	case "http":
		if c.Engine.URL == "" {
			return configError("engine.url is required for the http engine")
		}
	default:
		return configError(fmt.Sprintf("unknown engine.kind %q", c.Engine.Kind))
	}
	if c.Engine.Kind == "fixture" && c.Engine.FixturePath == "" {
		return configError("engine.fixture_path is required for the fixture engine")
	}

	e := c.Extraction
	if e.InvalidFieldPenalty < 0 || e.InvalidFieldPenalty > 1 {
		return configError("extraction.invalid_field_penalty must be within [0,1]")
	}
	if e.AmountTolerance < 0 {
		return configError("extraction.amount_tolerance must not be negative")
	}
	if e.TypeWeight < 0 || e.FieldWeight < 0 || e.TypeWeight+e.FieldWeight == 0 {
		return configError("extraction weights must be non-negative and not both zero")
	}

	b := c.Batch
	if b.MaxParallel < constants.MinParallelCount || b.MaxParallel > constants.MaxParallelCount {
		return configError(fmt.Sprintf("batch.max_parallel must be within [%d,%d]",
			constants.MinParallelCount, constants.MaxParallelCount))
	}
	if b.DefaultParallel > b.MaxParallel {
		return configError("batch.default_parallel must not exceed batch.max_parallel")
	}
	if b.MaxBatchSize < 1 {
		return configError("batch.max_batch_size must be at least 1")
	}
	if b.ItemTimeout <= 0 {
		return configError("batch.item_timeout must be positive")
	}
	if b.RequestsPerMinute < 0 {
		return configError("batch.requests_per_minute must not be negative")
	}

	switch c.Cache.Backend {
	case "memory", "none", "":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return configError("cache.redis_addr is required for the redis cache")
		}
	default:
		return configError(fmt.Sprintf("unknown cache.backend %q", c.Cache.Backend))
	}

	switch c.Store.Driver {
	case "none", "":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return configError("store.dsn is required when a store driver is set")
		}
	default:
		return configError(fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Server.GRPCAddr == "" {
		return configError("server.grpc_addr is required")
	}
	return nil
}

func configError(msg string) error {
	return NewAppError(CodeConfigError, msg, ErrInvalidInput)
}
