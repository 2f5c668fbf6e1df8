// Package pipeline assembles the batch handler from configuration.
package pipeline

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"sensoralarm/internal/awsclient"
	"sensoralarm/internal/config"
	"sensoralarm/internal/directory"
	"sensoralarm/internal/kafka"
	"sensoralarm/internal/logger"
	"sensoralarm/internal/notify"
	"sensoralarm/internal/processor"
	"sensoralarm/internal/state"
	"sensoralarm/internal/worker"
)

// Pipeline is everything needed to process change-record batches.
type Pipeline struct {
	Handler     *worker.BatchHandler
	Directory   directory.Directory
	Store       state.Store
	DeadLetters *kafka.Producer // nil when no dead letter topic is configured
}

// Build validates cfg and wires the pipeline. clients may be nil, in which
// case they are loaded when a backend or channel needs AWS.
func Build(ctx context.Context, cfg *config.Config, clients *awsclient.Clients) (*Pipeline, error) {
	log := logger.WithComponent("pipeline")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if clients == nil && cfg.UsesAWS() {
		var err error
		clients, err = awsclient.Load(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
	}

	var ddb *dynamodb.Client
	if clients != nil {
		ddb = clients.DynamoDB
	}

	dir, err := directory.New(cfg, ddb)
	if err != nil {
		return nil, fmt.Errorf("subscription directory: %w", err)
	}
	store, err := state.New(cfg, ddb)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}

	notifier := notify.New(notifierOptions(cfg, clients)...)
	proc := processor.New(dir, store, notifier)

	p := &Pipeline{Directory: dir, Store: store}
	wcfg := worker.Config{
		Processor:   proc,
		Concurrency: cfg.Batch.Concurrency,
	}
	if cfg.Kafka.DeadLetterTopic != "" && len(cfg.Kafka.Brokers) > 0 {
		p.DeadLetters, err = kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("dead letter producer: %w", err)
		}
		wcfg.DeadLetters = p.DeadLetters
	}
	p.Handler = worker.NewBatchHandler(wcfg)

	log.Info().
		Str("directory_backend", cfg.DirectoryBackend).
		Str("state_backend", cfg.StateBackend).
		Bool("email", cfg.SenderEmail != "" && clients != nil).
		Bool("sms", clients != nil).
		Bool("dead_letters", p.DeadLetters != nil).
		Int("concurrency", cfg.Batch.Concurrency).
		Msg("pipeline built")

	return p, nil
}

func notifierOptions(cfg *config.Config, clients *awsclient.Clients) []notify.Option {
	opts := []notify.Option{notify.WithMaxAttempts(cfg.Notify.MaxAttempts)}
	if clients == nil {
		return opts
	}
	if cfg.SenderEmail != "" {
		opts = append(opts, notify.WithEmail(notify.NewSESEmailSender(clients.SES), cfg.SenderEmail))
	}
	return append(opts, notify.WithSMS(notify.NewSNSSMSSender(clients.SNS)))
}

// Close releases the dead letter producer, if any.
func (p *Pipeline) Close() error {
	if p.DeadLetters == nil {
		return nil
	}
	if err := p.DeadLetters.Close(); err != nil {
		return fmt.Errorf("close dead letter producer: %w", err)
	}
	return nil
}
