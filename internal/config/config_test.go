package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypherlabdev/equine-oracle/internal/client"
	"github.com/cypherlabdev/equine-oracle/internal/service"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoadConfig_Defaults tests loading configuration with default values
func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")

	require.NoError(t, err)
	require.NotNil(t, config)

	// Verify server defaults
	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, config.Server.WriteTimeout)

	// Verify prediction defaults
	assert.Equal(t, client.DefaultBaseURL, config.Prediction.BaseURL)
	assert.Equal(t, "/api/predict", config.Prediction.Path)
	assert.Equal(t, time.Duration(0), config.Prediction.Timeout)
	assert.Equal(t, "last_resolved_wins", config.Prediction.ResolutionPolicy)
	assert.Equal(t, 5.0, config.Prediction.SubmitRate)
	assert.Equal(t, 10, config.Prediction.SubmitBurst)

	// Verify Kafka defaults
	assert.False(t, config.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, config.Kafka.Brokers)
	assert.Equal(t, "race_prediction_requests", config.Kafka.RequestTopic)
	assert.Equal(t, "race_predictions", config.Kafka.OutcomeTopic)
	assert.Equal(t, "equine-oracle", config.Kafka.GroupID)

	// Verify Redis defaults
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "localhost:6379", config.Redis.Addr)
	assert.Equal(t, "", config.Redis.Password)
	assert.Equal(t, 0, config.Redis.DB)
	assert.Equal(t, 24*time.Hour, config.Redis.TTL)
	assert.Equal(t, 100, config.Redis.HistorySize)

	// Verify logging defaults
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
}

// TestLoadConfig_WithFile tests loading configuration from file
func TestLoadConfig_WithFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  read_timeout: 45s
  write_timeout: 45s

prediction:
  base_url: http://localhost:8000
  path: /v2/predict
  timeout: 10s
  resolution_policy: discard_stale
  submit_rate: 1.5
  submit_burst: 3

kafka:
  enabled: true
  brokers:
    - broker1:9092
    - broker2:9092
  request_topic: test_requests
  outcome_topic: test_outcomes
  group_id: test_group

redis:
  enabled: false
  addr: redis:6379
  password: test_password
  db: 1
  ttl: 30m
  history_size: 50

logging:
  level: debug
  format: console
`)

	config, err := LoadConfig(path)

	require.NoError(t, err)
	require.NotNil(t, config)

	// Verify server config
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 45*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 45*time.Second, config.Server.WriteTimeout)

	// Verify prediction config
	assert.Equal(t, "http://localhost:8000", config.Prediction.BaseURL)
	assert.Equal(t, "/v2/predict", config.Prediction.Path)
	assert.Equal(t, 10*time.Second, config.Prediction.Timeout)
	assert.Equal(t, "discard_stale", config.Prediction.ResolutionPolicy)
	assert.Equal(t, 1.5, config.Prediction.SubmitRate)
	assert.Equal(t, 3, config.Prediction.SubmitBurst)

	// Verify Kafka config
	assert.True(t, config.Kafka.Enabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, config.Kafka.Brokers)
	assert.Equal(t, "test_requests", config.Kafka.RequestTopic)
	assert.Equal(t, "test_outcomes", config.Kafka.OutcomeTopic)
	assert.Equal(t, "test_group", config.Kafka.GroupID)

	// Verify Redis config
	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, "redis:6379", config.Redis.Addr)
	assert.Equal(t, "test_password", config.Redis.Password)
	assert.Equal(t, 1, config.Redis.DB)
	assert.Equal(t, 30*time.Minute, config.Redis.TTL)
	assert.Equal(t, 50, config.Redis.HistorySize)

	// Verify logging config
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "console", config.Logging.Format)
}

// TestLoadConfig_InvalidFile tests loading with non-existent file
func TestLoadConfig_InvalidFile(t *testing.T) {
	config, err := LoadConfig("/nonexistent/config.yaml")

	assert.Error(t, err)
	assert.Nil(t, config)
}

// TestLoadConfig_MalformedFile tests loading with values of the wrong type
func TestLoadConfig_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: invalid_port
  read_timeout: not_a_duration
`)

	config, err := LoadConfig(path)

	assert.Error(t, err)
	assert.Nil(t, config)
}

// TestLoadConfig_InvalidPolicy tests resolution policy validation
func TestLoadConfig_InvalidPolicy(t *testing.T) {
	path := writeConfigFile(t, `
prediction:
  resolution_policy: first_wins
`)

	config, err := LoadConfig(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "prediction.resolution_policy")
	assert.Nil(t, config)
}

// TestLoadConfig_PartialFile tests loading with partial configuration
func TestLoadConfig_PartialFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090

kafka:
  brokers:
    - broker1:9092

# Other configs will use defaults
`)

	config, err := LoadConfig(path)

	require.NoError(t, err)
	require.NotNil(t, config)

	// Verify overridden values
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, []string{"broker1:9092"}, config.Kafka.Brokers)

	// Verify defaults are still used for non-specified values
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, "race_prediction_requests", config.Kafka.RequestTopic)
	assert.Equal(t, "localhost:6379", config.Redis.Addr)
	assert.Equal(t, client.DefaultBaseURL, config.Prediction.BaseURL)
}

// TestLoadConfig_EnvironmentVariables tests environment variable overrides
func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("EQUINE_ORACLE_SERVER_PORT", "7777")
	t.Setenv("EQUINE_ORACLE_PREDICTION_BASE_URL", "http://predictor.internal:8000")
	t.Setenv("EQUINE_ORACLE_PREDICTION_TIMEOUT", "2s")
	t.Setenv("EQUINE_ORACLE_REDIS_ADDR", "env-redis:6379")
	t.Setenv("EQUINE_ORACLE_KAFKA_ENABLED", "true")

	config, err := LoadConfig("")

	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "http://predictor.internal:8000", config.Prediction.BaseURL)
	assert.Equal(t, 2*time.Second, config.Prediction.Timeout)
	assert.Equal(t, "env-redis:6379", config.Redis.Addr)
	assert.True(t, config.Kafka.Enabled)
}

// TestLoadConfigWithFlags tests command-line flag overrides
func TestLoadConfigWithFlags(t *testing.T) {
	t.Setenv("EQUINE_ORACLE_PREDICTION_BASE_URL", "http://from-env:8000")
	t.Setenv("EQUINE_ORACLE_LOGGING_LEVEL", "warn")

	flags := pflag.NewFlagSet("predict", pflag.ContinueOnError)
	flags.String("base-url", "", "")
	flags.Duration("timeout", 0, "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--base-url", "http://from-flag:9000", "--timeout", "3s"}))

	config, err := LoadConfigWithFlags("", flags)

	require.NoError(t, err)
	assert.Equal(t, "http://from-flag:9000", config.Prediction.BaseURL)
	assert.Equal(t, 3*time.Second, config.Prediction.Timeout)
	// Unset flags do not shadow the environment
	assert.Equal(t, "warn", config.Logging.Level)
}

// TestLoadDotEnv tests loading environment variables from a file
func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EQUINE_ORACLE_REDIS_DB=4\n"), 0o600))
	t.Setenv("EQUINE_ORACLE_REDIS_DB", "")
	os.Unsetenv("EQUINE_ORACLE_REDIS_DB")

	require.NoError(t, LoadDotEnv(path))

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4, config.Redis.DB)
}

// TestLoadDotEnv_MissingFile tests that a missing file is not an error
func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

// TestPredictionConfig_ToClientConfig tests conversion to client configuration
func TestPredictionConfig_ToClientConfig(t *testing.T) {
	c := PredictionConfig{
		BaseURL: "http://localhost:8000",
		Path:    "/api/predict",
		Timeout: 5 * time.Second,
	}

	cc := c.ToClientConfig()

	assert.Equal(t, client.Config{
		BaseURL: "http://localhost:8000",
		Path:    "/api/predict",
		Timeout: 5 * time.Second,
	}, cc)
}

// TestPredictionConfig_Policy tests resolution policy parsing
func TestPredictionConfig_Policy(t *testing.T) {
	tests := []struct {
		value    string
		expected service.ResolutionPolicy
		wantErr  bool
	}{
		{value: "", expected: service.LastResolvedWins},
		{value: "last_resolved_wins", expected: service.LastResolvedWins},
		{value: "DISCARD_STALE", expected: service.DiscardStale},
		{value: "newest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			c := PredictionConfig{ResolutionPolicy: tt.value}
			policy, err := c.Policy()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, policy)
		})
	}
}

// TestRedisConfig_ToHistoryConfig tests conversion to history configuration
func TestRedisConfig_ToHistoryConfig(t *testing.T) {
	c := RedisConfig{
		Addr:        "redis:6379",
		Password:    "secret",
		DB:          2,
		TTL:         time.Hour,
		HistorySize: 25,
	}

	hc := c.ToHistoryConfig()

	assert.Equal(t, "redis:6379", hc.Addr)
	assert.Equal(t, "secret", hc.Password)
	assert.Equal(t, 2, hc.DB)
	assert.Equal(t, time.Hour, hc.TTL)
	assert.Equal(t, 25, hc.HistorySize)
}

// TestKafkaConfig_Conversions tests conversion to consumer and publisher configuration
func TestKafkaConfig_Conversions(t *testing.T) {
	c := KafkaConfig{
		Brokers:      []string{"broker1:9092", "broker2:9092"},
		RequestTopic: "requests",
		OutcomeTopic: "outcomes",
		GroupID:      "group",
	}

	consumer := c.ToConsumerConfig()
	assert.Equal(t, c.Brokers, consumer.Brokers)
	assert.Equal(t, "requests", consumer.Topic)
	assert.Equal(t, "group", consumer.GroupID)

	publisher := c.ToPublisherConfig()
	assert.Equal(t, c.Brokers, publisher.Brokers)
	assert.Equal(t, "outcomes", publisher.Topic)
}
