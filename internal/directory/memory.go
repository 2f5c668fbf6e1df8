package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"sensoralarm/internal/models"
)

// MemoryDirectory serves subscriptions from memory, for local runs and tests.
type MemoryDirectory struct {
	mu   sync.RWMutex
	subs map[string][]models.Subscription
}

// NewMemory returns a directory holding the given subscriptions.
func NewMemory(subs []models.Subscription) *MemoryDirectory {
	d := &MemoryDirectory{subs: make(map[string][]models.Subscription)}
	for _, s := range subs {
		d.Add(s)
	}
	return d
}

// LoadMemory reads a JSON array of subscriptions from path.
func LoadMemory(path string) (*MemoryDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subscriptions file: %w", err)
	}

	var subs []models.Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("parse subscriptions file %s: %w", path, err)
	}
	return NewMemory(subs), nil
}

// Add registers a subscription under its sensor.
func (d *MemoryDirectory) Add(s models.Subscription) {
	d.mu.Lock()
	d.subs[s.SensorID] = append(d.subs[s.SensorID], s)
	d.mu.Unlock()
}

// ListSubscriptions returns a copy of the sensor's subscriptions.
func (d *MemoryDirectory) ListSubscriptions(_ context.Context, sensorID string) ([]models.Subscription, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.Subscription, len(d.subs[sensorID]))
	copy(out, d.subs[sensorID])
	return out, nil
}
