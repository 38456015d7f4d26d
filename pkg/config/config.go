package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
		Ops    struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic"`
			Interval  time.Duration `yaml:"interval"`
			Threshold int           `yaml:"threshold"`
		} `yaml:"ops"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	NSE struct {
		BaseURL          string        `yaml:"base_url"`
		PrimeURL         string        `yaml:"prime_url"`
		UserAgent        string        `yaml:"user_agent"`
		Timeout          time.Duration `yaml:"timeout"`
		MarketHoursCheck bool          `yaml:"market_hours_check"`
		MIC              string        `yaml:"mic"`
	} `yaml:"nse"`
	Model struct {
		Dir string `yaml:"dir"`
	} `yaml:"model"`
	Collector struct {
		Symbol       string        `yaml:"symbol"`
		Interval     time.Duration `yaml:"interval"`
		BufferSize   int           `yaml:"buffer_size"`
		FetchRetries int           `yaml:"fetch_retries"`
		RetryBackoff time.Duration `yaml:"retry_backoff"`
		MaxPerMinute float64       `yaml:"max_per_minute"`
		MaxSnapshots int           `yaml:"max_snapshots"`
	} `yaml:"collector"`
	Store struct {
		Backend      string        `yaml:"backend"` // parquet, clickhouse or none
		ParquetDir   string        `yaml:"parquet_dir"`
		BufferSize   int           `yaml:"buffer_size"`
		FlushBackoff time.Duration `yaml:"flush_backoff"`
	} `yaml:"store"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Audit struct {
		Enabled bool `yaml:"enabled"`
		Consume bool `yaml:"consume"`
		Kafka   struct {
			Brokers      []string `yaml:"brokers"`
			Topic        string   `yaml:"topic"`
			OpsTopic     string   `yaml:"ops_topic"`
			RequiredAcks int      `yaml:"required_acks"`
			Compression  string   `yaml:"compression"`
			Producer     struct {
				MaxAttempts  int           `yaml:"max_attempts"`
				Linger       time.Duration `yaml:"linger"`
				BatchBytes   int           `yaml:"batch_bytes"`
				BatchSize    int           `yaml:"batch_size"`
				WriteTimeout time.Duration `yaml:"write_timeout"`
				ReadTimeout  time.Duration `yaml:"read_timeout"`
				Async        bool          `yaml:"async"`
			} `yaml:"producer"`
			Consumer struct {
				GroupID    string        `yaml:"group_id"`
				Workers    int           `yaml:"workers"`
				BufferSize int           `yaml:"buffer_size"`
				RetryMax   int           `yaml:"retry_max"`
				BackoffMin time.Duration `yaml:"backoff_min"`
				BackoffMax time.Duration `yaml:"backoff_max"`
				DLQTopic   string        `yaml:"dlq_topic"`
				MinBytes   int           `yaml:"min_bytes"`
				MaxBytes   int           `yaml:"max_bytes"`
			} `yaml:"consumer"`
		} `yaml:"kafka"`
	} `yaml:"audit"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("NSE_BASE_URL"); v != "" {
		c.NSE.BaseURL = v
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		c.Collector.Symbol = strings.ToUpper(v)
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Audit.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Audit.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.NSE.BaseURL == "" {
		c.NSE.BaseURL = "https://www.nseindia.com/api/option-chain-indices"
	}
	if c.NSE.PrimeURL == "" {
		c.NSE.PrimeURL = "https://www.nseindia.com"
	}
	if c.NSE.UserAgent == "" {
		c.NSE.UserAgent = "Mozilla/5.0"
	}
	if c.NSE.Timeout <= 0 {
		c.NSE.Timeout = 10 * time.Second
	}
	if c.NSE.MIC == "" {
		c.NSE.MIC = "xbom"
	}
	if c.Collector.Symbol == "" {
		c.Collector.Symbol = "NIFTY"
	}
	if c.Collector.Interval <= 0 {
		c.Collector.Interval = 60 * time.Second
	}
	if c.Collector.BufferSize <= 0 {
		c.Collector.BufferSize = 100
	}
	if c.Collector.FetchRetries <= 0 {
		c.Collector.FetchRetries = 3
	}
	if c.Collector.RetryBackoff <= 0 {
		c.Collector.RetryBackoff = 2 * time.Second
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "parquet"
	}
	if c.Store.ParquetDir == "" {
		c.Store.ParquetDir = "data/processed"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 5 * time.Second
	}
	if c.Log.Ops.Topic == "" {
		c.Log.Ops.Topic = "ops.logs"
	}
	if c.Log.Ops.Interval <= 0 {
		c.Log.Ops.Interval = 30 * time.Second
	}
	if c.Log.Ops.Threshold <= 0 {
		c.Log.Ops.Threshold = 100
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Model.Dir == "" {
		return fmt.Errorf("model.dir is required")
	}
	switch c.Store.Backend {
	case "parquet", "clickhouse", "none":
	default:
		return fmt.Errorf("store.backend must be 'parquet', 'clickhouse' or 'none', got '%s'", c.Store.Backend)
	}
	if c.Store.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for clickhouse backend")
	}
	if c.Audit.Enabled && len(c.Audit.Kafka.Brokers) == 0 {
		return fmt.Errorf("audit.kafka.brokers cannot be empty when audit is enabled")
	}
	return nil
}
