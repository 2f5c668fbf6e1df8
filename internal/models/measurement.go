package models

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Attribute names with a fixed meaning in a measurement image
const (
	AttrSensorID  = "sensorId"
	AttrTimestamp = "timestamp"
)

// Measurement is a decoded sensor reading. It lives only while one record is processed.
type Measurement struct {
	SensorID string

	// Epoch milliseconds as reported by the sensor
	Timestamp int64

	// Metric name to value; never empty for a decoded measurement
	Fields map[string]float64
}

// Time returns the measurement timestamp as a UTC time.
func (m *Measurement) Time() time.Time {
	return time.UnixMilli(m.Timestamp).UTC()
}

// Metrics returns the measured metric names in a stable order.
func (m *Measurement) Metrics() []string {
	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeMeasurement extracts a measurement from a change-feed record.
// The second return is false when the record should be skipped: not an
// insert, no image, missing sensorId or timestamp, or no numeric fields.
func DecodeMeasurement(r ChangeRecord) (*Measurement, bool) {
	if !r.IsInsert() || r.NewImage == nil {
		return nil, false
	}

	sensorID, ok := r.NewImage[AttrSensorID].Str()
	if !ok || strings.TrimSpace(sensorID) == "" {
		return nil, false
	}

	ts, ok := r.NewImage[AttrTimestamp].Float()
	if !ok || ts < math.MinInt64 || ts >= math.MaxInt64 {
		return nil, false
	}

	fields := make(map[string]float64, len(r.NewImage))
	for name, attr := range r.NewImage {
		if name == AttrSensorID || name == AttrTimestamp {
			continue
		}
		if v, ok := attr.Float(); ok {
			fields[name] = v
		}
	}
	if len(fields) == 0 {
		return nil, false
	}

	return &Measurement{
		SensorID:  sensorID,
		Timestamp: int64(ts),
		Fields:    fields,
	}, true
}
