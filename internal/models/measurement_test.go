package models

import (
	"testing"
)

func TestDecodeMeasurement(t *testing.T) {
	valid := func() ChangeRecord {
		return ChangeRecord{
			EventType: "INSERT",
			NewImage: map[string]AttributeValue{
				AttrSensorID:  String("sensor-1"),
				AttrTimestamp: Number(1700000000000),
				"temperature": Number(31.2),
				"humidity":    Number(40),
				"location":    String("hall"),
			},
		}
	}

	m, ok := DecodeMeasurement(valid())
	if !ok {
		t.Fatal("expected valid record to decode")
	}
	if m.SensorID != "sensor-1" {
		t.Errorf("expected sensor-1, got %s", m.SensorID)
	}
	if m.Timestamp != 1700000000000 {
		t.Errorf("unexpected timestamp %d", m.Timestamp)
	}
	if len(m.Fields) != 2 || m.Fields["temperature"] != 31.2 || m.Fields["humidity"] != 40 {
		t.Errorf("unexpected fields %v", m.Fields)
	}
	if got := m.Metrics(); len(got) != 2 || got[0] != "humidity" || got[1] != "temperature" {
		t.Errorf("unexpected metric order %v", got)
	}
}

func TestDecodeMeasurementSkips(t *testing.T) {
	base := func() map[string]AttributeValue {
		return map[string]AttributeValue{
			AttrSensorID:  String("sensor-1"),
			AttrTimestamp: Number(1700000000000),
			"temperature": Number(20),
		}
	}
	bad := "not-a-number"
	nan := "NaN"
	inf := "-Inf"

	tests := []struct {
		name   string
		record func() ChangeRecord
	}{
		{"remove event", func() ChangeRecord {
			return ChangeRecord{EventType: "REMOVE", NewImage: base()}
		}},
		{"modify event", func() ChangeRecord {
			return ChangeRecord{EventType: "MODIFY", NewImage: base()}
		}},
		{"no image", func() ChangeRecord {
			return ChangeRecord{EventType: "INSERT"}
		}},
		{"missing sensor id", func() ChangeRecord {
			img := base()
			delete(img, AttrSensorID)
			return ChangeRecord{EventType: "INSERT", NewImage: img}
		}},
		{"empty sensor id", func() ChangeRecord {
			img := base()
			img[AttrSensorID] = String("  ")
			return ChangeRecord{EventType: "INSERT", NewImage: img}
		}},
		{"numeric sensor id", func() ChangeRecord {
			img := base()
			img[AttrSensorID] = Number(7)
			return ChangeRecord{EventType: "INSERT", NewImage: img}
		}},
		{"missing timestamp", func() ChangeRecord {
			img := base()
			delete(img, AttrTimestamp)
			return ChangeRecord{EventType: "INSERT", NewImage: img}
		}},
		{"string timestamp", func() ChangeRecord {
			img := base()
			img[AttrTimestamp] = String("2024-01-01T00:00:00Z")
			return ChangeRecord{EventType: "INSERT", NewImage: img}
		}},
		{"unparseable number", func() ChangeRecord {
			img := base()
			img[AttrTimestamp] = AttributeValue{N: &bad}
			return ChangeRecord{EventType: "INSERT", NewImage: img}
		}},
		{"timestamp out of range", func() ChangeRecord {
			img := base()
			img[AttrTimestamp] = Number(1e300)
			return ChangeRecord{EventType: "INSERT", NewImage: img}
		}},
		{"infinite timestamp", func() ChangeRecord {
			img := base()
			img[AttrTimestamp] = AttributeValue{N: &inf}
			return ChangeRecord{EventType: "INSERT", NewImage: img}
		}},
		{"only non-finite fields", func() ChangeRecord {
			img := base()
			img["temperature"] = AttributeValue{N: &nan}
			return ChangeRecord{EventType: "INSERT", NewImage: img}
		}},
		{"no numeric fields", func() ChangeRecord {
			img := base()
			img["temperature"] = String("hot")
			return ChangeRecord{EventType: "INSERT", NewImage: img}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if m, ok := DecodeMeasurement(tt.record()); ok {
				t.Errorf("expected record to be skipped, got %+v", m)
			}
		})
	}
}

func TestDecodeMeasurementDropsNonFiniteFields(t *testing.T) {
	nan, inf := "NaN", "+Inf"
	r := ChangeRecord{
		EventType: "INSERT",
		NewImage: map[string]AttributeValue{
			AttrSensorID:  String("sensor-1"),
			AttrTimestamp: Number(1700000000000),
			"temperature": {N: &nan},
			"pressure":    {N: &inf},
			"humidity":    Number(40),
		},
	}

	m, ok := DecodeMeasurement(r)
	if !ok {
		t.Fatal("expected record with one finite field to decode")
	}
	if len(m.Fields) != 1 || m.Fields["humidity"] != 40 {
		t.Errorf("expected only humidity, got %v", m.Fields)
	}
}

func TestAttributeValueFloat(t *testing.T) {
	for _, raw := range []string{"NaN", "nan", "Inf", "-Inf", "1e400", "abc"} {
		v := raw
		if f, ok := (AttributeValue{N: &v}).Float(); ok {
			t.Errorf("%q should be rejected, got %v", raw, f)
		}
	}
	v := " 1e3 "
	if f, ok := (AttributeValue{N: &v}).Float(); !ok || f != 1000 {
		t.Errorf("expected 1000, got %v (%v)", f, ok)
	}
}

func TestChangeRecordIsInsert(t *testing.T) {
	for _, name := range []string{"insert", "INSERT", " Insert "} {
		if !(ChangeRecord{EventType: name}).IsInsert() {
			t.Errorf("%q should be an insert", name)
		}
	}
	if (ChangeRecord{EventType: "remove"}).IsInsert() {
		t.Error("remove should not be an insert")
	}
}
