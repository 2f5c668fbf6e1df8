// Package state persists the per-key alarm state machines.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"sensoralarm/internal/config"
	"sensoralarm/internal/models"
)

// Store errors
var (
	ErrUnknownBackend = errors.New("unknown state backend")
	ErrCorruptState   = errors.New("stored alarm state is invalid")
)

// Store gets and puts the last-known alarm state of a key. Writes overwrite;
// concurrent writers to the same key resolve last-write-wins.
type Store interface {
	// Get returns nil, nil when the key has never been written.
	Get(ctx context.Context, key models.StateKey) (*models.AlarmState, error)
	Put(ctx context.Context, key models.StateKey, s models.AlarmState) error
}

// New returns the store selected by cfg.StateBackend.
func New(cfg *config.Config, client *dynamodb.Client) (Store, error) {
	switch cfg.StateBackend {
	case config.BackendDynamoDB:
		if client == nil {
			return nil, errors.New("dynamodb client is required for the dynamodb state backend")
		}
		return NewDynamoDB(client, cfg.StateTable), nil
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.StateBackend)
	}
}
