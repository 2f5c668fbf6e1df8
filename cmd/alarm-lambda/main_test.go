package main

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"sensoralarm/internal/directory"
	"sensoralarm/internal/models"
	"sensoralarm/internal/notify"
	"sensoralarm/internal/processor"
	"sensoralarm/internal/state"
	"sensoralarm/internal/worker"
)

func streamRecord(id, name string, image map[string]events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   id,
		EventName: name,
		Change:    events.DynamoDBStreamRecord{NewImage: image},
	}
}

func TestConvertRecords(t *testing.T) {
	in := []events.DynamoDBEventRecord{
		streamRecord("1", "INSERT", map[string]events.DynamoDBAttributeValue{
			"sensorId":    events.NewStringAttribute("sensor-1"),
			"timestamp":   events.NewNumberAttribute("1700000000000"),
			"temperature": events.NewNumberAttribute("31.5"),
			"online":      events.NewBooleanAttribute(true),
		}),
		streamRecord("2", "REMOVE", nil),
	}

	out := convertRecords(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}

	first := out[0]
	if first.EventID != "1" || !first.IsInsert() {
		t.Errorf("unexpected header %+v", first)
	}
	if len(first.NewImage) != 3 {
		t.Errorf("expected boolean attribute to be dropped, got %v", first.NewImage)
	}
	if v, ok := first.NewImage["temperature"].Float(); !ok || v != 31.5 {
		t.Errorf("unexpected temperature %v", v)
	}

	m, ok := models.DecodeMeasurement(first)
	if !ok || m.SensorID != "sensor-1" {
		t.Errorf("converted record should decode, got %+v", m)
	}

	if out[1].NewImage != nil {
		t.Errorf("expected no image for remove, got %v", out[1].NewImage)
	}
}

func TestHandleNeverFails(t *testing.T) {
	dir := directory.NewMemory(nil)
	proc := processor.New(dir, state.NewMemory(), notify.New())
	h := &handler{batches: worker.NewBatchHandler(worker.Config{Processor: proc})}

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("1", "INSERT", map[string]events.DynamoDBAttributeValue{
			"sensorId":    events.NewStringAttribute("sensor-1"),
			"timestamp":   events.NewNumberAttribute("1700000000000"),
			"temperature": events.NewNumberAttribute("20"),
		}),
		streamRecord("2", "MODIFY", nil),
	}}

	result, err := h.handle(context.Background(), event)
	if err != nil {
		t.Fatalf("handle returned %v", err)
	}
	if result.Processed != 2 || result.Failed != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}
