package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"sensoralarm/internal/config"
	"sensoralarm/internal/logger"
	"sensoralarm/internal/metrics"
	"sensoralarm/internal/models"
	"sensoralarm/internal/worker"
)

// BatchProcessor processes a batch of change records.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, records []models.ChangeRecord) worker.Result
}

// messageReader is the subset of *kafka.Reader used by the consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a change feed from a Kafka topic, processes it in batches
// and commits offsets once a batch has been handled. Offsets of failed
// records are committed too; failures are reported, not redelivered.
type Consumer struct {
	reader       messageReader
	handler      BatchProcessor
	batchSize    int
	batchTimeout time.Duration
}

// NewConsumer creates a consumer group reader for the configured topic.
func NewConsumer(cfg config.KafkaConfig, handler BatchProcessor) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, handler, cfg.BatchSize, cfg.BatchTimeout), nil
}

func newConsumer(reader messageReader, handler BatchProcessor, batchSize int, batchTimeout time.Duration) *Consumer {
	if batchSize <= 0 {
		batchSize = 100
	}
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	return &Consumer{
		reader:       reader,
		handler:      handler,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
	}
}

// Run consumes until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	log := logger.WithComponent("changefeed_consumer")
	log.Info().
		Int("batch_size", c.batchSize).
		Dur("batch_timeout", c.batchTimeout).
		Msg("change feed consumer starting")

	fetched := make(chan kafka.Message, c.batchSize)
	fetchErr := make(chan error, 1)
	go func() {
		defer close(fetched)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				fetchErr <- err
				return
			}
			select {
			case fetched <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	batch := make([]kafka.Message, 0, c.batchSize)
	timer := time.NewTimer(c.batchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// unflushed messages are uncommitted and will be redelivered
			log.Info().Int("pending", len(batch)).Msg("change feed consumer stopping")
			return nil

		case msg, ok := <-fetched:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("fetch message: %w", <-fetchErr)
			}

			batch = append(batch, msg)
			if len(batch) >= c.batchSize {
				if err := c.flush(ctx, batch); err != nil {
					return err
				}
				batch = batch[:0]
				timer.Reset(c.batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := c.flush(ctx, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
			timer.Reset(c.batchTimeout)
		}
	}
}

// flush processes and commits one batch.
func (c *Consumer) flush(ctx context.Context, msgs []kafka.Message) error {
	log := logger.WithComponent("changefeed_consumer")

	records := DecodeMessages(msgs)
	if len(records) > 0 {
		result := c.handler.ProcessBatch(ctx, records)
		log.Debug().
			Int("messages", len(msgs)).
			Int("processed", result.Processed).
			Int("failed", result.Failed).
			Msg("change feed batch handled")
	}

	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		metrics.KafkaCommitErrors.Inc()
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("commit messages: %w", err)
	}
	return nil
}

// DecodeMessages turns message values into change records. Messages that
// are not valid JSON are dropped the same way undecodable records are.
func DecodeMessages(msgs []kafka.Message) []models.ChangeRecord {
	log := logger.WithComponent("changefeed_consumer")
	records := make([]models.ChangeRecord, 0, len(msgs))

	for _, msg := range msgs {
		var r models.ChangeRecord
		if err := json.Unmarshal(msg.Value, &r); err != nil {
			log.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("dropping malformed change feed message")
			metrics.KafkaMessagesConsumed.WithLabelValues("malformed").Inc()
			continue
		}
		if r.EventID == "" {
			r.EventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
		}
		metrics.KafkaMessagesConsumed.WithLabelValues("decoded").Inc()
		records = append(records, r)
	}
	return records
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
