package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"AOWI/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	ModeSimulation = "simulation"
	ModeLive       = "live"

	SourceSynthetic = "synthetic"
	SourceRedis     = "redis"
)

type Config struct {
	Environment string                    `yaml:"environment" default:"development" validate:"required"`
	Log         LogConfig                 `yaml:"log"`
	Server      ServerConfig              `yaml:"server"`
	Dispatch    DispatchConfig            `yaml:"dispatch"`
	Risk        RiskConfig                `yaml:"risk"`
	Broker      BrokerConfig              `yaml:"broker"`
	MarketData  MarketDataConfig          `yaml:"market_data"`
	Strategies  map[string]map[string]any `yaml:"strategies"`
	Outcomes    OutcomesConfig            `yaml:"outcomes"`
}

type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stdout"`
	TimeFormat string `yaml:"time_format"`
}

type ServerConfig struct {
	Enabled           bool          `yaml:"enabled"`
	HoldOpen          bool          `yaml:"hold_open"`
	CORS              bool          `yaml:"cors" default:"true"`
	Port              int           `yaml:"port" default:"8080" validate:"gte=0,lte=65535"`
	ReadTimeout       time.Duration `yaml:"read_timeout" default:"10s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold     time.Duration `yaml:"slow_threshold" default:"500ms"`
	PingInterval      time.Duration `yaml:"ping_interval" default:"15s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"20" validate:"gte=0"`
	Burst             float64       `yaml:"burst" default:"40" validate:"gte=0"`
}

type DispatchConfig struct {
	// Cycles is optional; nil means one cycle and a negative value means unbounded.
	Cycles            *int          `yaml:"cycles"`
	Interval          time.Duration `yaml:"interval" default:"1s" validate:"gte=0"`
	Workers           int           `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	ConflictPolicy    string        `yaml:"conflict_policy" default:"dominant" validate:"oneof=dominant net DOMINANT NET"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout" default:"5s" validate:"gt=0"`
	ViewTimeout       time.Duration `yaml:"view_timeout" default:"2s" validate:"gt=0"`
	EvaluateTimeout   time.Duration `yaml:"evaluate_timeout" default:"2s" validate:"gt=0"`
	SubmitTimeout     time.Duration `yaml:"submit_timeout" default:"3s" validate:"gt=0"`
	DisconnectTimeout time.Duration `yaml:"disconnect_timeout" default:"3s" validate:"gt=0"`
	DrainTimeout      time.Duration `yaml:"drain_timeout" default:"5s" validate:"gt=0"`
}

// CycleBudget returns the configured cycle count, defaulting to 1.
func (d DispatchConfig) CycleBudget() int {
	if d.Cycles == nil {
		return 1
	}
	return *d.Cycles
}

type RiskConfig struct {
	AllowedSymbols  []string          `yaml:"allowed_symbols" default:"[\"EURUSD\",\"GBPUSD\",\"USDJPY\"]"`
	MaxVolume       string            `yaml:"max_volume" default:"1"`
	SymbolMaxVolume map[string]string `yaml:"symbol_max_volume"`
}

// Volumes parses the volume caps.
func (r RiskConfig) Volumes() (decimal.Decimal, map[string]decimal.Decimal, error) {
	max, err := decimal.NewFromString(r.MaxVolume)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("risk.max_volume %q: %w", r.MaxVolume, err)
	}
	if !max.IsPositive() {
		return decimal.Zero, nil, fmt.Errorf("risk.max_volume must be positive, got %s", max)
	}
	per := make(map[string]decimal.Decimal, len(r.SymbolMaxVolume))
	for sym, raw := range r.SymbolMaxVolume {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, nil, fmt.Errorf("risk.symbol_max_volume.%s %q: %w", sym, raw, err)
		}
		if !v.IsPositive() {
			return decimal.Zero, nil, fmt.Errorf("risk.symbol_max_volume.%s must be positive, got %s", sym, v)
		}
		per[sym] = v
	}
	return max, per, nil
}

type BrokerConfig struct {
	Mode string    `yaml:"mode" default:"simulation" validate:"oneof=simulation live"`
	MT5  MT5Config `yaml:"mt5"`
}

type MT5Config struct {
	BaseURL            string        `yaml:"base_url"`
	Login              int64         `yaml:"login"`
	Password           string        `yaml:"password"`
	Server             string        `yaml:"server"`
	Timeout            time.Duration `yaml:"timeout" default:"5s"`
	Deviation          int           `yaml:"deviation" default:"10" validate:"gte=0"`
	Magic              int64         `yaml:"magic" default:"240901"`
	MaxOrdersPerSecond float64       `yaml:"max_orders_per_second" default:"5" validate:"gte=0"`
	Burst              float64       `yaml:"burst" default:"5" validate:"gte=0"`
}

type MarketDataConfig struct {
	Source    string          `yaml:"source" default:"synthetic" validate:"oneof=synthetic redis"`
	Symbols   []string        `yaml:"symbols" default:"[\"EURUSD\",\"GBPUSD\",\"USDJPY\"]" validate:"min=1,dive,required"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
	Redis     RedisConfig     `yaml:"redis"`
}

type SyntheticConfig struct {
	Seed      int64   `yaml:"seed" default:"1"`
	StepBps   float64 `yaml:"step_bps" default:"2" validate:"gte=0"`
	SpreadBps float64 `yaml:"spread_bps" default:"1" validate:"gte=0"`
}

type RedisConfig struct {
	Addr      string        `yaml:"addr" default:"localhost:6379"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db" validate:"gte=0"`
	PoolSize  int           `yaml:"pool_size" default:"10" validate:"gte=1"`
	KeyPrefix string        `yaml:"key_prefix" default:"aowi:quote:"`
	MaxAge    time.Duration `yaml:"max_age" default:"5s" validate:"gte=0"`
}

type OutcomesConfig struct {
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type PipelineConfig struct {
	BufferSize int           `yaml:"buffer_size" default:"256" validate:"gte=1"`
	RetryMax   int           `yaml:"retry_max" default:"3" validate:"gte=0"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"50ms" validate:"gt=0"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"2s" validate:"gt=0"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"aowi.results"`
	RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
	BatchSize    int           `yaml:"batch_size" default:"100" validate:"gte=1"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576" validate:"gte=1"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"aowi"`
	Table            string        `yaml:"table" default:"dispatch_results"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	PingTimeout      time.Duration `yaml:"ping_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := decode(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := decode(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Environment = util.EnvString("AOWI_ENV", c.Environment)
	c.Log.Level = util.EnvString("AOWI_LOG_LEVEL", c.Log.Level)
	c.Broker.Mode = util.EnvString("AOWI_BROKER_MODE", c.Broker.Mode)
	c.Broker.MT5.BaseURL = util.EnvString("AOWI_MT5_BASE_URL", c.Broker.MT5.BaseURL)
	c.Broker.MT5.Login = util.EnvInt64("AOWI_MT5_LOGIN", c.Broker.MT5.Login)
	c.Broker.MT5.Password = util.EnvString("AOWI_MT5_PASSWORD", c.Broker.MT5.Password)
	c.Outcomes.Kafka.Brokers = envListOr("AOWI_KAFKA_BROKERS", c.Outcomes.Kafka.Brokers)
	c.MarketData.Symbols = envListOr("AOWI_SYMBOLS", c.MarketData.Symbols)
	c.MarketData.Redis.Addr = util.EnvString("AOWI_REDIS_ADDR", c.MarketData.Redis.Addr)
	if _, ok := util.LookupEnv("AOWI_CYCLES"); ok {
		n := util.EnvInt("AOWI_CYCLES", c.Dispatch.CycleBudget())
		c.Dispatch.Cycles = &n
	}
}

func envListOr(key string, def []string) []string {
	if v := util.EnvList(key); len(v) > 0 {
		return v
	}
	return def
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	if len(c.Strategies) == 0 {
		errs = append(errs, errors.New("strategies cannot be empty"))
	}
	if _, _, err := c.Risk.Volumes(); err != nil {
		errs = append(errs, err)
	}
	if c.Broker.Mode == ModeLive && c.Broker.MT5.BaseURL == "" {
		errs = append(errs, errors.New("broker.mt5.base_url is required in live mode"))
	}
	if c.MarketData.Source == SourceRedis && c.MarketData.Redis.Addr == "" {
		errs = append(errs, errors.New("market_data.redis.addr is required for the redis source"))
	}
	if c.Outcomes.Kafka.Enabled && len(c.Outcomes.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("outcomes.kafka.brokers cannot be empty when kafka is enabled"))
	}
	if c.Outcomes.ClickHouse.Enabled && c.Outcomes.ClickHouse.Host == "" {
		errs = append(errs, errors.New("outcomes.clickhouse.host is required when clickhouse is enabled"))
	}
	if p := c.Outcomes.Pipeline; p.BackoffMax < p.BackoffMin {
		errs = append(errs, fmt.Errorf("outcomes.pipeline.backoff_max %s is below backoff_min %s", p.BackoffMax, p.BackoffMin))
	}
	return errors.Join(errs...)
}
