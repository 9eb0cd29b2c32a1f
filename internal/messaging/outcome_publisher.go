package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutcomePublisher publishes resolved prediction outcomes to Kafka
type OutcomePublisher struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

// OutcomePublisherConfig holds Kafka publisher configuration
type OutcomePublisherConfig struct {
	Brokers []string // e.g., ["localhost:9092"]
	Topic   string   // e.g., "race_predictions"
}

// NewOutcomePublisher creates a new Kafka outcome publisher
func NewOutcomePublisher(config OutcomePublisherConfig, logger zerolog.Logger) *OutcomePublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return newOutcomePublisher(writer, config.Topic, logger)
}

func newOutcomePublisher(writer messageWriter, topic string, logger zerolog.Logger) *OutcomePublisher {
	return &OutcomePublisher{
		writer:       writer,
		topic:        topic,
		writeTimeout: 5 * time.Second,
		now:          time.Now,
		logger:       logger.With().Str("component", "outcome_publisher").Logger(),
	}
}

// Publish writes a resolved outcome keyed by its submission ID
func (p *OutcomePublisher) Publish(ctx context.Context, outcome models.Outcome) error {
	if !outcome.Resolved() {
		return nil
	}

	value, err := json.Marshal(models.KafkaPredictionOutcomeMessage{
		Outcome:     outcome,
		PublishedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(outcome.SubmissionID.String()),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	p.logger.Debug().
		Str("topic", p.topic).
		Str("submission_id", outcome.SubmissionID.String()).
		Str("phase", outcome.Phase.String()).
		Msg("published prediction outcome")

	return nil
}

// Render publishes resolved outcomes as an orchestrator sink
func (p *OutcomePublisher) Render(outcome models.Outcome) {
	if !outcome.Resolved() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	if err := p.Publish(ctx, outcome); err != nil {
		p.logger.Warn().
			Err(err).
			Str("submission_id", outcome.SubmissionID.String()).
			Msg("failed to publish prediction outcome")
	}
}

// Close flushes and closes the Kafka writer
func (p *OutcomePublisher) Close() error {
	return p.writer.Close()
}
