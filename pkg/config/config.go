package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string          `yaml:"environment" default:"development" validate:"required"`
	Log         LogConfig       `yaml:"log"`
	Server      ServerConfig    `yaml:"server"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Forecast    ForecastConfig  `yaml:"forecast"`
	RateSource  RateSource      `yaml:"rate_source"`
	Cache       CacheConfig     `yaml:"cache"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	Stream      StreamConfig    `yaml:"stream"`
	Backend     BackendConfig   `yaml:"backend"`
	Kafka       KafkaConfig     `yaml:"kafka"`
	ClickHouse  ClickHouse      `yaml:"clickhouse"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type RateLimitConfig struct {
	Enabled      bool          `yaml:"enabled" default:"true"`
	Burst        int           `yaml:"burst" default:"60" validate:"gte=1"`
	RefillPerSec float64       `yaml:"refill_per_sec" default:"1" validate:"gt=0"`
	ExpiresIn    time.Duration `yaml:"expires_in" default:"3m"`
}

// ForecastConfig tunes execution only; the currency set is fixed at build time.
type ForecastConfig struct {
	Timezone    string        `yaml:"timezone" default:"UTC" validate:"required"`
	Concurrency int           `yaml:"concurrency" default:"5" validate:"gte=1"`
	RateTimeout time.Duration `yaml:"rate_timeout" default:"5s"`
}

type RateSource struct {
	BaseURL  string        `yaml:"base_url" default:"https://open.er-api.com/v6/latest" validate:"url"`
	Timeout  time.Duration `yaml:"timeout" default:"10s"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"10m"`
}

type CacheConfig struct {
	MaxSize         int           `yaml:"max_size" default:"256" validate:"gte=1"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m"`
	L1TTL           time.Duration `yaml:"l1_ttl" default:"1m"`
	Redis           RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"fxpredict"`
	PoolSize int    `yaml:"pool_size" default:"10"`
}

type SchedulerConfig struct {
	Enabled    bool          `yaml:"enabled" default:"true"`
	Spec       string        `yaml:"spec" default:"0 */15 * * * *"`
	RunOnStart bool          `yaml:"run_on_start"`
	Timeout    time.Duration `yaml:"timeout" default:"1m"`
}

type StreamConfig struct {
	PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
}

type BackendConfig struct {
	Type string `yaml:"type" default:"none" validate:"oneof=kafka clickhouse none"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"fxpredict.snapshots"`
	RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer     KafkaProducer `yaml:"producer"`
	Consumer     KafkaConsumer `yaml:"consumer"`
}

type KafkaProducer struct {
	MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

type KafkaConsumer struct {
	Enabled    bool          `yaml:"enabled"`
	GroupID    string        `yaml:"group_id" default:"fxpredict-snapshots"`
	Workers    int           `yaml:"workers" default:"4" validate:"gte=1"`
	BufferSize int           `yaml:"buffer_size" default:"256" validate:"gte=1"`
	RetryMax   int           `yaml:"retry_max" default:"3" validate:"gte=0"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
	DLQTopic   string        `yaml:"dlq_topic"`
}

type ClickHouse struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"fxpredict"`
	Table            string        `yaml:"table" default:"prediction_snapshots"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

// Default returns a config with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Parse applies defaults, then overlays the YAML document b, then validates.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := decodeYAML(b, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// decodeYAML overlays b onto c, rejecting keys the config does not define.
func decodeYAML(b []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides it with environment variables.
// A missing file falls back to defaults.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		b = nil
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := decodeYAML(b, c); err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("RATE_SOURCE_URL"); ok && v != "" {
		c.RateSource.BaseURL = v
	}
	if v, ok := lookup("BACKEND"); ok && v != "" {
		c.Backend.Type = v
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("KAFKA_TOPIC"); ok && v != "" {
		c.Kafka.Topic = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup("HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks field constraints and cross-section requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	switch c.Backend.Type {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("backend kafka requires kafka.brokers")
		}
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return errors.New("backend clickhouse requires clickhouse.enabled")
		}
	}
	if c.Kafka.Consumer.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.consumer requires kafka.brokers")
		}
		if !c.ClickHouse.Enabled {
			return errors.New("kafka.consumer requires clickhouse.enabled")
		}
	}
	if c.Scheduler.Enabled && strings.TrimSpace(c.Scheduler.Spec) == "" {
		return errors.New("scheduler.spec is required when the scheduler is enabled")
	}
	if _, err := time.LoadLocation(c.Forecast.Timezone); err != nil {
		return fmt.Errorf("forecast.timezone: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
