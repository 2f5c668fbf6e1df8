package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted for the directory and state store.
const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Configuration errors
var (
	ErrMissingSubscriptionsTable = errors.New("subscriptions table name is required")
	ErrMissingStateTable         = errors.New("state table name is required")
	ErrUnknownBackend            = errors.New("unknown backend")
	ErrInvalidValue              = errors.New("invalid configuration value")
)

// Config holds runtime configuration for the alarm processor.
// It is built once at process start and never reloaded.
type Config struct {
	// DynamoDB table holding subscriptions, partitioned by sensorId
	SubscriptionsTable string `mapstructure:"subscriptions_table"`
	// DynamoDB table holding per (sensor#metric, subscriber) alarm state
	StateTable string `mapstructure:"state_table"`
	// Verified sender identity used as the From address of alarm emails
	SenderEmail string `mapstructure:"sender_email"`

	// dynamodb or memory
	DirectoryBackend string `mapstructure:"directory_backend"`
	StateBackend     string `mapstructure:"state_backend"`
	// JSON file seeding the memory directory
	SubscriptionsFile string `mapstructure:"subscriptions_file"`

	AWSRegion string `mapstructure:"aws_region"`
	LogLevel  string `mapstructure:"log_level"`

	Batch  BatchConfig  `mapstructure:"batch"`
	Notify NotifyConfig `mapstructure:"notify"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
}

// BatchConfig controls the batch fan-out.
type BatchConfig struct {
	// Max records evaluated concurrently; 0 means one goroutine per record
	Concurrency int `mapstructure:"concurrency"`
}

// NotifyConfig controls channel delivery.
type NotifyConfig struct {
	// Total attempts per channel, including the first
	MaxAttempts int `mapstructure:"max_attempts"`
}

// HTTPConfig holds the service listener settings.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodySize  int64         `mapstructure:"max_body_size"`
}

// KafkaConfig configures the optional change-feed consumer.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	Topic           string        `mapstructure:"topic"`
	GroupID         string        `mapstructure:"group_id"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
}

// Enabled reports whether a change-feed consumer should run.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		SubscriptionsTable: "sensor-subscriptions",
		StateTable:         "sensor-alarm-state",
		DirectoryBackend:   BackendDynamoDB,
		StateBackend:       BackendDynamoDB,
		AWSRegion:          "us-east-1",
		LogLevel:           "info",
		Batch: BatchConfig{
			Concurrency: 16,
		},
		Notify: NotifyConfig{
			MaxAttempts: 2,
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodySize:  10 * 1024 * 1024, // 10MB
		},
		Kafka: KafkaConfig{
			GroupID:      "sensoralarm",
			BatchSize:    100,
			BatchTimeout: time.Second,
			WriteTimeout: 10 * time.Second,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
		},
	}
}

// Load returns Default overridden by environment variables. Nested keys map
// to upper-case names joined by underscores, e.g. kafka.batch_timeout is read
// from KAFKA_BATCH_TIMEOUT.
func Load() (*Config, error) {
	return load(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())
	return v
}

// setDefaults registers every key so AutomaticEnv can resolve it on Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("subscriptions_table", d.SubscriptionsTable)
	v.SetDefault("state_table", d.StateTable)
	v.SetDefault("sender_email", d.SenderEmail)
	v.SetDefault("directory_backend", d.DirectoryBackend)
	v.SetDefault("state_backend", d.StateBackend)
	v.SetDefault("subscriptions_file", d.SubscriptionsFile)
	v.SetDefault("aws_region", d.AWSRegion)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("batch.concurrency", d.Batch.Concurrency)
	v.SetDefault("notify.max_attempts", d.Notify.MaxAttempts)

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", d.HTTP.IdleTimeout)
	v.SetDefault("http.max_body_size", d.HTTP.MaxBodySize)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	v.SetDefault("kafka.group_id", d.Kafka.GroupID)
	v.SetDefault("kafka.dead_letter_topic", d.Kafka.DeadLetterTopic)
	v.SetDefault("kafka.batch_size", d.Kafka.BatchSize)
	v.SetDefault("kafka.batch_timeout", d.Kafka.BatchTimeout)
	v.SetDefault("kafka.write_timeout", d.Kafka.WriteTimeout)
	v.SetDefault("kafka.max_retries", d.Kafka.MaxRetries)
	v.SetDefault("kafka.retry_backoff", d.Kafka.RetryBackoff)
}

func load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	// KAFKA_BROKERS arrives as a comma separated string
	cfg.Kafka.Brokers = splitCSV(strings.Join(cfg.Kafka.Brokers, ","))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration can be used to build the processor.
func (c *Config) Validate() error {
	switch c.DirectoryBackend {
	case BackendDynamoDB:
		if c.SubscriptionsTable == "" {
			return ErrMissingSubscriptionsTable
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: directory backend %q", ErrUnknownBackend, c.DirectoryBackend)
	}

	switch c.StateBackend {
	case BackendDynamoDB:
		if c.StateTable == "" {
			return ErrMissingStateTable
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: state backend %q", ErrUnknownBackend, c.StateBackend)
	}

	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("%w: notify max attempts must be >= 1, got %d", ErrInvalidValue, c.Notify.MaxAttempts)
	}
	if c.Batch.Concurrency < 0 {
		return fmt.Errorf("%w: batch concurrency must be >= 0, got %d", ErrInvalidValue, c.Batch.Concurrency)
	}
	return nil
}

// UsesAWS reports whether any backend needs AWS clients. Email and SMS
// always go through AWS, so this is true unless everything is local and
// no sender identity is configured.
func (c *Config) UsesAWS() bool {
	return c.DirectoryBackend == BackendDynamoDB ||
		c.StateBackend == BackendDynamoDB ||
		c.SenderEmail != ""
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
