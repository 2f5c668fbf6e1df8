package models

import (
	"time"
)

// AlarmKind is the evaluated condition of one metric for one subscriber.
type AlarmKind string

const (
	StateOK   AlarmKind = "ok"
	StateLow  AlarmKind = "low"
	StateHigh AlarmKind = "high"
)

// IsValid checks if the alarm kind is one of the known states
func (k AlarmKind) IsValid() bool {
	switch k {
	case StateOK, StateLow, StateHigh:
		return true
	default:
		return false
	}
}

// IsAlarm reports whether the kind is an alarm (low or high).
func (k AlarmKind) IsAlarm() bool {
	return k == StateLow || k == StateHigh
}

// StateKey identifies one alarm state machine.
type StateKey struct {
	SensorID     string
	Metric       string
	SubscriberID string
}

// PartitionKey is the "<sensorId>#<metric>" half of the persisted key.
func (k StateKey) PartitionKey() string {
	return k.SensorID + "#" + k.Metric
}

// String returns a printable form of the key for logs.
func (k StateKey) String() string {
	return k.PartitionKey() + "/" + k.SubscriberID
}

// AlarmState is the persisted state of one key.
type AlarmState struct {
	LastState AlarmKind

	// nil until the first notification for the key was delivered
	LastNotifiedAt *time.Time
}

// Equal reports whether two states would persist identically.
// Notification times compare at millisecond precision, the stored resolution.
func (s AlarmState) Equal(o AlarmState) bool {
	if s.LastState != o.LastState {
		return false
	}
	if s.LastNotifiedAt == nil || o.LastNotifiedAt == nil {
		return s.LastNotifiedAt == nil && o.LastNotifiedAt == nil
	}
	return s.LastNotifiedAt.UnixMilli() == o.LastNotifiedAt.UnixMilli()
}
