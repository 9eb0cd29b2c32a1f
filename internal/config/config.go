package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cypherlabdev/equine-oracle/internal/cache"
	"github.com/cypherlabdev/equine-oracle/internal/client"
	"github.com/cypherlabdev/equine-oracle/internal/messaging"
	"github.com/cypherlabdev/equine-oracle/internal/service"
)

// EnvPrefix prefixes every environment override, e.g. EQUINE_ORACLE_PREDICTION_BASE_URL
const EnvPrefix = "EQUINE_ORACLE"

// Config holds all configuration for equine-oracle
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// PredictionConfig holds prediction service configuration
type PredictionConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Path             string        `mapstructure:"path"`
	Timeout          time.Duration `mapstructure:"timeout"` // 0 disables the local timeout
	ResolutionPolicy string        `mapstructure:"resolution_policy"`
	SubmitRate       float64       `mapstructure:"submit_rate"` // Submissions per second over HTTP, 0 disables the limit
	SubmitBurst      int           `mapstructure:"submit_burst"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	RequestTopic string   `mapstructure:"request_topic"` // Topic to consume from (race_prediction_requests)
	OutcomeTopic string   `mapstructure:"outcome_topic"` // Topic to publish to (race_predictions)
	GroupID      string   `mapstructure:"group_id"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	TTL         time.Duration `mapstructure:"ttl"`
	HistorySize int           `mapstructure:"history_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// flagKeys maps command-line flag names to config keys
var flagKeys = map[string]string{
	"base-url":          "prediction.base_url",
	"timeout":           "prediction.timeout",
	"resolution-policy": "prediction.resolution_policy",
	"log-level":         "logging.level",
	"log-format":        "logging.format",
}

// LoadDotEnv loads environment variables from the given files, or .env when
// none are given. Missing files are not an error.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWithFlags(configPath, nil)
}

// LoadConfigWithFlags loads configuration like LoadConfig; flags that were set
// on the command line override file and environment values.
func LoadConfigWithFlags(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("prediction.base_url", client.DefaultBaseURL)
	v.SetDefault("prediction.path", client.DefaultPath)
	v.SetDefault("prediction.timeout", time.Duration(0))
	v.SetDefault("prediction.resolution_policy", string(service.LastResolvedWins))
	v.SetDefault("prediction.submit_rate", 5.0)
	v.SetDefault("prediction.submit_burst", 10)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.request_topic", "race_prediction_requests")
	v.SetDefault("kafka.outcome_topic", "race_predictions")
	v.SetDefault("kafka.group_id", "equine-oracle")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("redis.history_size", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Replace . with _ for environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Unmarshal to struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if _, err := config.Prediction.Policy(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ToClientConfig converts config to prediction client configuration
func (c *PredictionConfig) ToClientConfig() client.Config {
	return client.Config{
		BaseURL: c.BaseURL,
		Path:    c.Path,
		Timeout: c.Timeout,
	}
}

// Policy parses the configured resolution policy
func (c *PredictionConfig) Policy() (service.ResolutionPolicy, error) {
	policy, err := service.ParseResolutionPolicy(c.ResolutionPolicy)
	if err != nil {
		return "", fmt.Errorf("invalid prediction.resolution_policy: %w", err)
	}
	return policy, nil
}

// ToHistoryConfig converts config to Redis history configuration
func (c *RedisConfig) ToHistoryConfig() cache.RedisHistoryConfig {
	return cache.RedisHistoryConfig{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		TTL:         c.TTL,
		HistorySize: c.HistorySize,
	}
}

// ToConsumerConfig converts config to Kafka consumer configuration
func (c *KafkaConfig) ToConsumerConfig() messaging.KafkaConsumerConfig {
	return messaging.KafkaConsumerConfig{
		Brokers: c.Brokers,
		Topic:   c.RequestTopic,
		GroupID: c.GroupID,
	}
}

// ToPublisherConfig converts config to Kafka publisher configuration
func (c *KafkaConfig) ToPublisherConfig() messaging.OutcomePublisherConfig {
	return messaging.OutcomePublisherConfig{
		Brokers: c.Brokers,
		Topic:   c.OutcomeTopic,
	}
}
