package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

const recentKey = "predictions:recent"

// ErrNotFound is returned when a submission has no stored outcome
var ErrNotFound = errors.New("prediction not found in history")

// RedisHistory keeps resolved prediction outcomes in Redis.
// Feature vectors are never stored.
type RedisHistory struct {
	client       *redis.Client
	ttl          time.Duration
	size         int64
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// RedisHistoryConfig holds Redis history configuration
type RedisHistoryConfig struct {
	Addr        string // e.g., "localhost:6379"
	Password    string
	DB          int
	TTL         time.Duration // e.g., 24 * time.Hour
	HistorySize int           // Length of the recent list
}

// NewRedisHistory creates a new Redis-backed prediction history
func NewRedisHistory(config RedisHistoryConfig, logger zerolog.Logger) *RedisHistory {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	size := int64(config.HistorySize)
	if size <= 0 {
		size = 100
	}

	return &RedisHistory{
		client:       client,
		ttl:          config.TTL,
		size:         size,
		writeTimeout: 5 * time.Second,
		logger:       logger.With().Str("component", "redis_history").Logger(),
	}
}

func outcomeKey(id uuid.UUID) string {
	return outcomeKeyFor(id.String())
}

func outcomeKeyFor(id string) string {
	return "prediction:" + id
}

// Record stores a resolved outcome and pushes it onto the recent list.
// Idle and pending outcomes are ignored.
func (h *RedisHistory) Record(ctx context.Context, outcome models.Outcome) error {
	if !outcome.Resolved() {
		return nil
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	key := outcomeKey(outcome.SubmissionID)
	pipe := h.client.TxPipeline()
	pipe.Set(ctx, key, data, h.ttl)
	pipe.LPush(ctx, recentKey, outcome.SubmissionID.String())
	pipe.LTrim(ctx, recentKey, 0, h.size-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute pipeline: %w", err)
	}

	h.logger.Debug().
		Str("key", key).
		Str("phase", outcome.Phase.String()).
		Dur("ttl", h.ttl).
		Msg("recorded prediction outcome")

	return nil
}

// Render records resolved outcomes as an orchestrator sink
func (h *RedisHistory) Render(outcome models.Outcome) {
	if !outcome.Resolved() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	defer cancel()

	if err := h.Record(ctx, outcome); err != nil {
		h.logger.Warn().
			Err(err).
			Str("submission_id", outcome.SubmissionID.String()).
			Msg("failed to record prediction outcome")
	}
}

// Get retrieves the stored outcome of a submission
func (h *RedisHistory) Get(ctx context.Context, id uuid.UUID) (*models.Outcome, error) {
	data, err := h.client.Get(ctx, outcomeKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get from Redis: %w", err)
	}

	var outcome models.Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcome: %w", err)
	}

	return &outcome, nil
}

// Recent returns up to limit outcomes, newest first. Entries whose TTL
// expired are skipped.
func (h *RedisHistory) Recent(ctx context.Context, limit int) ([]*models.Outcome, error) {
	if limit <= 0 {
		return []*models.Outcome{}, nil
	}

	ids, err := h.client.LRange(ctx, recentKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent list: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Outcome{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = outcomeKeyFor(id)
	}

	values, err := h.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get outcomes: %w", err)
	}

	outcomes := make([]*models.Outcome, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}

		var outcome models.Outcome
		if err := json.Unmarshal([]byte(s), &outcome); err != nil {
			h.logger.Warn().Err(err).Str("key", keys[i]).Msg("failed to unmarshal outcome")
			continue
		}
		outcomes = append(outcomes, &outcome)
	}

	return outcomes, nil
}

// Ping checks Redis connection
func (h *RedisHistory) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (h *RedisHistory) Close() error {
	return h.client.Close()
}
