package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Market struct {
		BaseURL        string        `yaml:"base_url" validate:"required,url"`
		Symbols        []string      `yaml:"symbols" validate:"min=1"`
		Start          string        `yaml:"start"`
		End            string        `yaml:"end"`
		Interval       string        `yaml:"interval" default:"1d" validate:"oneof=1d 1wk 1mo"`
		Timezone       string        `yaml:"timezone" default:"Asia/Tokyo"`
		RetryCount     int           `yaml:"retry_count" default:"3"`
		RetryBaseDelay time.Duration `yaml:"retry_base_delay" default:"1s"`
		RetryMaxDelay  time.Duration `yaml:"retry_max_delay" default:"10s"`
	} `yaml:"market"`

	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
	} `yaml:"stream"`

	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"daytrade"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	} `yaml:"clickhouse"`

	Kafka struct {
		Enabled    bool     `yaml:"enabled"`
		Brokers    []string `yaml:"brokers"`
		BarTopic   string   `yaml:"bar_topic" default:"daytrade.bars"`
		EventTopic string   `yaml:"event_topic" default:"daytrade.events"`
		Consumer   struct {
			GroupID    string        `yaml:"group_id" default:"daytrade"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	Cache struct {
		PredictionTTL time.Duration `yaml:"prediction_ttl" default:"5m"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Dataset struct {
		MarginPct      float64 `yaml:"margin_pct"`
		WinsorizePct   float64 `yaml:"winsorize_pct" default:"0.01" validate:"gte=0,lt=0.5"`
		MinTradingDays int     `yaml:"min_trading_days" default:"20" validate:"gte=1"`
		OutputPath     string  `yaml:"output_path" default:"./data/daily_ohlcv_features.csv"`
	} `yaml:"dataset"`

	Model struct {
		Path         string  `yaml:"path" default:"./models/direction_model.json"`
		NumLeaves    int     `yaml:"num_leaves" default:"31" validate:"gte=2"`
		LearningRate float64 `yaml:"learning_rate" default:"0.05" validate:"gt=0"`
		NEstimators  int     `yaml:"n_estimators" default:"100" validate:"gte=1"`
		CVSplits     int     `yaml:"cv_splits" default:"5" validate:"gte=2"`
	} `yaml:"model"`
}

var validate = validator.New()

// Load reads, defaults, and validates a YAML config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
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

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Market.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("MARKET_BASE_URL"); v != "" {
		c.Market.BaseURL = v
	}
	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	return c, nil
}
