// Package directory looks up the subscriptions registered for a sensor.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"sensoralarm/internal/config"
	"sensoralarm/internal/models"
)

// Directory errors
var (
	ErrUnknownBackend = errors.New("unknown directory backend")
)

// Directory lists the subscriptions of a sensor. Implementations return an
// empty, non-nil slice when the sensor has none.
type Directory interface {
	ListSubscriptions(ctx context.Context, sensorID string) ([]models.Subscription, error)
}

// New returns the directory selected by cfg.DirectoryBackend.
func New(cfg *config.Config, client *dynamodb.Client) (Directory, error) {
	switch cfg.DirectoryBackend {
	case config.BackendDynamoDB:
		if client == nil {
			return nil, errors.New("dynamodb client is required for the dynamodb directory backend")
		}
		return NewDynamoDB(client, cfg.SubscriptionsTable), nil
	case config.BackendMemory:
		if cfg.SubscriptionsFile == "" {
			return NewMemory(nil), nil
		}
		return LoadMemory(cfg.SubscriptionsFile)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.DirectoryBackend)
	}
}
