package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the relay service
type Config struct {
	Environment string                    `mapstructure:"environment"`
	LogLevel    string                    `mapstructure:"log_level"`
	Network     string                    `mapstructure:"network"`
	Server      ServerConfig              `mapstructure:"server"`
	ExecutorAPI HTTPServiceConfig         `mapstructure:"executor_api"`
	Circle      HTTPServiceConfig         `mapstructure:"circle"`
	Redis       RedisConfig               `mapstructure:"redis"`
	Referrer    ReferrerConfig            `mapstructure:"referrer"`
	GasLimits   map[string]uint64         `mapstructure:"gas_limits"`
	Solana      SolanaConfig              `mapstructure:"solana"`
	EVM         map[string]EVMChainConfig `mapstructure:"evm"`
	Tracker     TrackerConfig             `mapstructure:"tracker"`
	Watcher     WatcherConfig             `mapstructure:"watcher"`
	Tracing     TracingConfig             `mapstructure:"tracing"`
	Estimator   EstimatorConfig           `mapstructure:"estimator"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

// HTTPServiceConfig configures an upstream HTTP API. An empty BaseURL
// selects the network default.
type HTTPServiceConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"`
	MaxRetries int    `mapstructure:"max_retries"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// ReferrerConfig controls the fee taken on every transfer
type ReferrerConfig struct {
	FeeDbps int `mapstructure:"fee_dbps"`
	// FeeThreshold caps the charged amount, in whole USDC. Zero disables it.
	FeeThreshold int64 `mapstructure:"fee_threshold"`
	// Addresses overrides the built-in referrer per source chain.
	Addresses map[string]string `mapstructure:"addresses"`
}

type SolanaConfig struct {
	RPCURL               string `mapstructure:"rpc_url"`
	Timeout              int    `mapstructure:"timeout"`
	MsgValueBaseFee      uint64 `mapstructure:"msg_value_base_fee"`
	MessageTransmitterV2 string `mapstructure:"message_transmitter_v2"`
}

// EVMChainConfig enables an EVM chain. Contracts left empty fall back to
// the built-in deployments.
type EVMChainConfig struct {
	RPCURL               string `mapstructure:"rpc_url"`
	ShimV1               string `mapstructure:"shim_v1"`
	ShimV2               string `mapstructure:"shim_v2"`
	MessageTransmitterV2 string `mapstructure:"message_transmitter_v2"`
}

type TrackerConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // seconds
	Timeout      int `mapstructure:"timeout"`       // seconds
}

// WatcherConfig drives background tracking of persisted receipts
type WatcherConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Schedule     string `mapstructure:"schedule"`
	TrackTimeout int    `mapstructure:"track_timeout"` // seconds per receipt per run
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

type EstimatorConfig struct {
	ToleranceBps int64 `mapstructure:"tolerance_bps"`
}

// PollIntervalDuration is the tracker tick.
func (c TrackerConfig) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

func (c TrackerConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Addr is host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("network", "Testnet")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.rate_limit_per_min", 120)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Upstream APIs
	v.SetDefault("executor_api.timeout", 30)
	v.SetDefault("executor_api.max_retries", 3)
	v.SetDefault("circle.timeout", 30)
	v.SetDefault("circle.max_retries", 3)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	// Referrer defaults
	v.SetDefault("referrer.fee_dbps", 10)
	v.SetDefault("referrer.fee_threshold", 0)

	// Solana defaults
	v.SetDefault("solana.rpc_url", "https://api.devnet.solana.com")
	v.SetDefault("solana.timeout", 15)
	v.SetDefault("solana.msg_value_base_fee", 15000)

	// Tracking
	v.SetDefault("tracker.poll_interval", 3)
	v.SetDefault("tracker.timeout", 3600)
	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.schedule", "@every 1m")
	v.SetDefault("watcher.track_timeout", 20)

	// Tracing
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_url", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("estimator.tolerance_bps", 500)
}

func overrideFromEnv(v *viper.Viper) {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("server.port", p)
		}
	}

	if network := os.Getenv("NETWORK"); network != "" {
		v.Set("network", network)
	}

	// Redis
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		v.Set("redis.password", redisPassword)
	}

	// Upstream APIs
	if executorURL := os.Getenv("EXECUTOR_API_URL"); executorURL != "" {
		v.Set("executor_api.base_url", executorURL)
	}
	if circleURL := os.Getenv("CIRCLE_BASE_URL"); circleURL != "" {
		v.Set("circle.base_url", circleURL)
	}
	if solanaRPC := os.Getenv("SOLANA_RPC_URL"); solanaRPC != "" {
		v.Set("solana.rpc_url", solanaRPC)
	}

	// Referrer
	if feeDbps := os.Getenv("REFERRER_FEE_DBPS"); feeDbps != "" {
		if dbps, err := strconv.Atoi(feeDbps); err == nil {
			v.Set("referrer.fee_dbps", dbps)
		}
	}

	// Tracing
	if collector := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); collector != "" {
		v.Set("tracing.collector_url", collector)
		v.Set("tracing.enabled", true)
	}
}

func validate(config *Config) error {
	switch strings.ToLower(config.Network) {
	case "mainnet", "testnet":
	default:
		return fmt.Errorf("network must be Mainnet or Testnet, got %q", config.Network)
	}

	if config.Referrer.FeeDbps < 0 || config.Referrer.FeeDbps > 65535 {
		return fmt.Errorf("referrer fee_dbps must be within [0, 65535]")
	}

	if config.Referrer.FeeThreshold < 0 {
		return fmt.Errorf("referrer fee_threshold must not be negative")
	}

	if config.Tracker.PollInterval <= 0 {
		return fmt.Errorf("tracker poll_interval must be positive")
	}

	if config.Watcher.Enabled && config.Watcher.Schedule == "" {
		return fmt.Errorf("watcher schedule is required when the watcher is enabled")
	}

	for chain, evm := range config.EVM {
		if evm.RPCURL == "" {
			return fmt.Errorf("evm.%s.rpc_url is required", chain)
		}
	}

	return nil
}
