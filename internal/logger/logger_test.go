package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestHelpersAddFields(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger
	Logger = zerolog.New(&buf)
	defer func() { Logger = prev }()

	WithComponent("decoder").Info().Msg("component")
	WithRequestID("req-1").Info().Msg("request")
	WithSensor("processor", "sensor-7").Info().Msg("sensor")

	dec := json.NewDecoder(&buf)
	want := []map[string]string{
		{"component": "decoder"},
		{"request_id": "req-1"},
		{"component": "processor", "sensor_id": "sensor-7"},
	}
	for i, fields := range want {
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		for k, v := range fields {
			if entry[k] != v {
				t.Errorf("line %d: expected %s=%s, got %v", i, k, v, entry[k])
			}
		}
	}
}
