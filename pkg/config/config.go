package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Backtest struct {
		InitialCapital   float64 `yaml:"initial_capital" default:"100000"`
		TransactionCosts float64 `yaml:"transaction_costs" default:"0.001"`
		RiskFreeRate     float64 `yaml:"risk_free_rate" default:"0.02"`
		TradingDays      float64 `yaml:"trading_days" default:"252"`
		HistoryLimit     int     `yaml:"history_limit" default:"10000"`
	} `yaml:"backtest"`
	Ensemble struct {
		DefaultStrategy     string  `yaml:"default_strategy" default:"regime_aware"`
		MinModels           int     `yaml:"min_models" default:"2"`
		MaxModels           int     `yaml:"max_models" default:"10"`
		RegimeLookback      int     `yaml:"regime_lookback" default:"50"`
		VolatilityThreshold float64 `yaml:"volatility_threshold" default:"0.015"`
		TrendThreshold      float64 `yaml:"trend_threshold" default:"0.02"`
	} `yaml:"ensemble"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		SignalsTopic string   `yaml:"signals_topic" default:"qb.signals"`
		ResultsTopic string   `yaml:"results_topic" default:"qb.backtest_results"`
		LogsTopic    string   `yaml:"logs_topic" default:"qb.error_logs"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"200"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"quantbench"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1024"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"quantbench"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		BatchSize        int           `yaml:"batch_size" default:"500"`
		BatchTimeout     time.Duration `yaml:"batch_timeout" default:"2s"`
	} `yaml:"clickhouse"`
	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"15s"`
		MaxRPS         int           `yaml:"max_rps" default:"50"`
		BufferSize     int           `yaml:"buffer_size" default:"2000"`
	} `yaml:"stream"`
	Cache struct {
		ResultTTL time.Duration `yaml:"result_ttl" default:"5m"`
		RegimeTTL time.Duration `yaml:"regime_ttl" default:"30s"`
		Redis     struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Queue struct {
		Enabled   bool          `yaml:"enabled"`
		Workers   int           `yaml:"workers" default:"2"`
		JobTTL    time.Duration `yaml:"job_ttl" default:"1h"`
		RedisAddr string        `yaml:"redis_addr" default:"localhost:6379"`
		RedisDB   int           `yaml:"redis_db"`
	} `yaml:"queue"`
}

// Load reads and parses a YAML configuration file, applying struct defaults
// before unmarshalling so omitted keys keep sane values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Stream.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_SIGNALS_TOPIC"); v != "" {
		c.Kafka.SignalsTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Queue.RedisAddr = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	if c.Backtest.TransactionCosts < 0 {
		return fmt.Errorf("backtest.transaction_costs cannot be negative")
	}
	if c.Backtest.TradingDays <= 0 {
		return fmt.Errorf("backtest.trading_days must be positive")
	}
	if c.Ensemble.MinModels < 1 {
		return fmt.Errorf("ensemble.min_models must be at least 1")
	}
	if c.Ensemble.MaxModels < c.Ensemble.MinModels {
		return fmt.Errorf("ensemble.max_models must be >= ensemble.min_models")
	}
	if c.Stream.Enabled {
		if c.Stream.WebSocketURL == "" {
			return fmt.Errorf("stream.websocket_url is required when the stream is enabled")
		}
		if len(c.Stream.Symbols) == 0 {
			return fmt.Errorf("stream.symbols cannot be empty when the stream is enabled")
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.SignalsTopic == "" {
		return fmt.Errorf("kafka.signals_topic is required when brokers are set")
	}
	return nil
}
