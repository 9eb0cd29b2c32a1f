package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/cypherlabdev/equine-oracle/internal/form"
	"github.com/cypherlabdev/equine-oracle/internal/models"
	"github.com/cypherlabdev/equine-oracle/internal/service"
)

// KafkaConsumer consumes race form submissions from Kafka and submits them for prediction
type KafkaConsumer struct {
	reader    *kafka.Reader
	submitter service.Submitter
	logger    zerolog.Logger
}

// KafkaConsumerConfig holds Kafka consumer configuration
type KafkaConsumerConfig struct {
	Brokers []string // e.g., ["localhost:9092"]
	Topic   string   // e.g., "race_prediction_requests"
	GroupID string   // e.g., "equine-oracle"
}

// NewKafkaConsumer creates a new Kafka consumer
func NewKafkaConsumer(
	config KafkaConsumerConfig,
	submitter service.Submitter,
	logger zerolog.Logger,
) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.GroupID,
		MinBytes:       1,
		MaxBytes:       1e6,
		CommitInterval: time.Second,
	})

	return &KafkaConsumer{
		reader:    reader,
		submitter: submitter,
		logger:    logger.With().Str("component", "kafka_consumer").Logger(),
	}
}

// Start begins consuming messages from Kafka
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("topic", c.reader.Config().Topic).
		Str("group_id", c.reader.Config().GroupID).
		Msg("started consuming from Kafka")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("stopping Kafka consumer")
			return c.reader.Close()

		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				c.logger.Error().Err(err).Msg("failed to fetch message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Error().
					Err(err).
					Int64("offset", msg.Offset).
					Str("key", string(msg.Key)).
					Msg("failed to process message")
			}

			// Undecodable messages are committed too; redelivery would fail the same way
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error().Err(err).Msg("failed to commit message")
			}
		}
	}
}

// processMessage applies the message's form values over the defaults and submits them
func (c *KafkaConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var kafkaMsg models.KafkaPredictionRequestMessage
	if err := json.Unmarshal(msg.Value, &kafkaMsg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	c.logger.Debug().
		Int("field_count", len(kafkaMsg.Form)).
		Str("batch_id", kafkaMsg.BatchID).
		Msg("processing prediction request")

	state := models.DefaultFormState()
	if err := form.Apply(&state, kafkaMsg.Form); err != nil {
		if !errors.Is(err, form.ErrUnknownField) {
			return fmt.Errorf("failed to apply form: %w", err)
		}
		c.logger.Warn().
			Err(err).
			Str("batch_id", kafkaMsg.BatchID).
			Msg("ignoring unknown form fields")
	}

	submission := c.submitter.Submit(ctx, state)

	c.logger.Info().
		Str("submission_id", submission.ID.String()).
		Str("race_id", submission.RaceID).
		Str("batch_id", kafkaMsg.BatchID).
		Msg("submitted prediction request")

	return nil
}

// Close closes the Kafka reader
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
