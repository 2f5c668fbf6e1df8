package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"sensoralarm/internal/config"
	"sensoralarm/internal/logger"
	"sensoralarm/internal/metrics"
	"sensoralarm/internal/models"
)

// Producer errors
var (
	ErrProducerClosed  = errors.New("producer is closed")
	ErrSerializeFailed = errors.New("failed to serialize message")
)

// messageWriter is the subset of *kafka.Writer used by the producer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes failed change records to a dead letter topic, with
// retry and exponential backoff.
type Producer struct {
	writer       messageWriter
	maxRetries   int
	retryBackoff time.Duration
	closed       atomic.Bool

	// Metrics
	messagesSent   atomic.Uint64
	messagesFailed atomic.Uint64
}

// NewProducer creates a dead letter producer for cfg.DeadLetterTopic.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.DeadLetterTopic == "" {
		return nil, errors.New("dead letter topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.DeadLetterTopic,
		Balancer:     &kafka.Hash{}, // Partition by key
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        false, // Sync for reliability
	}
	return newProducer(writer, cfg.MaxRetries, cfg.RetryBackoff), nil
}

func newProducer(writer messageWriter, maxRetries int, backoff time.Duration) *Producer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Producer{
		writer:       writer,
		maxRetries:   maxRetries,
		retryBackoff: backoff,
	}
}

// Publish sends a dead letter, keyed by sensor.
func (p *Producer) Publish(ctx context.Context, dl *models.DeadLetter) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	data, err := json.Marshal(dl)
	if err != nil {
		p.messagesFailed.Add(1)
		metrics.DeadLettersTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}

	msg := kafka.Message{
		Key:   []byte(dl.PartitionKey),
		Value: data,
		Headers: []kafka.Header{
			{Key: "batch_id", Value: []byte(dl.BatchID)},
			{Key: "event_id", Value: []byte(dl.Record.EventID)},
			{Key: "node", Value: []byte(dl.Node)},
		},
		Time: dl.FailedAt,
	}

	if err := p.publishWithRetry(ctx, msg); err != nil {
		p.messagesFailed.Add(1)
		metrics.DeadLettersTotal.WithLabelValues("failed").Inc()
		return err
	}

	p.messagesSent.Add(1)
	metrics.DeadLettersTotal.WithLabelValues("success").Inc()
	return nil
}

// publishWithRetry publishes a single message with exponential backoff retry
func (p *Producer) publishWithRetry(ctx context.Context, msg kafka.Message) error {
	log := logger.WithComponent("dead_letter_producer")
	var lastErr error
	backoff := p.retryBackoff

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying dead letter publish")

			metrics.DeadLetterPublishRetries.Inc()

			select {
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Msg("dead letter publish attempt failed")

		// Check for non-retryable errors
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	log.Error().
		Err(lastErr).
		Int("max_retries", p.maxRetries+1).
		Msg("dead letter publish failed after all retries")

	return fmt.Errorf("failed after %d attempts: %w", p.maxRetries+1, lastErr)
}

// Close closes the writer
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil // Already closed
	}
	return p.writer.Close()
}

// Stats returns producer statistics
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		MessagesSent:   p.messagesSent.Load(),
		MessagesFailed: p.messagesFailed.Load(),
	}
}

// ProducerStats holds producer metrics
type ProducerStats struct {
	MessagesSent   uint64
	MessagesFailed uint64
}
