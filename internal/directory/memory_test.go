package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sensoralarm/internal/config"
)

func TestLoadMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.json")
	data := `[
		{"sensorId": "s1", "subscriberId": "u1", "active": true, "channels": ["email"],
		 "email": "ops@example.com", "thresholds": {"temperature": {"max": 30, "hysteresis": 0.5}}},
		{"sensorId": "s2", "subscriberId": "u1", "active": false}
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.DirectoryBackend = config.BackendMemory
	cfg.SubscriptionsFile = path

	dir, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	subs, err := dir.ListSubscriptions(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListSubscriptions() error = %v", err)
	}
	if len(subs) != 1 || subs[0].SubscriberID != "u1" {
		t.Fatalf("unexpected subscriptions %+v", subs)
	}
	if th, ok := subs[0].Threshold("temperature"); !ok || *th.Max != 30 {
		t.Errorf("unexpected threshold %+v", th)
	}

	none, err := dir.ListSubscriptions(context.Background(), "s3")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil result, got %#v, %v", none, err)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.DirectoryBackend = "ldap"
	if _, err := New(cfg, nil); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestNewDynamoDBNeedsClient(t *testing.T) {
	if _, err := New(config.Default(), nil); err == nil {
		t.Error("expected an error without a dynamodb client")
	}
}
