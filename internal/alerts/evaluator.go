// Package alerts holds the per-key alarm state machine: threshold evaluation
// with hysteresis, and the cooldown gate deciding whether to notify.
package alerts

import (
	"sensoralarm/internal/models"
)

// NoState is passed as the previous state when a key has never been evaluated.
const NoState models.AlarmKind = ""

// Classify compares a value with the raw bounds, ignoring hysteresis.
func Classify(value float64, th models.ThresholdConfig) models.AlarmKind {
	if th.Max != nil && value > *th.Max {
		return models.StateHigh
	}
	if th.Min != nil && value < *th.Min {
		return models.StateLow
	}
	return models.StateOK
}

// Evaluate computes the next state of a key from the measured value, the
// threshold and the previous state. Entering an alarm needs the raw bound
// to be crossed; hysteresis only holds an active alarm. Pure function.
func Evaluate(value float64, th models.ThresholdConfig, prev models.AlarmKind) models.AlarmKind {
	raw := Classify(value, th)
	if prev == NoState || prev == raw {
		return raw
	}

	switch prev {
	case models.StateHigh:
		if th.Max != nil && value > *th.Max-th.Hysteresis {
			return models.StateHigh
		}
		return models.StateOK
	case models.StateLow:
		if th.Min != nil && value < *th.Min+th.Hysteresis {
			return models.StateLow
		}
		return models.StateOK
	default:
		// prev was ok (or unknown) and raw differs: enter the raw state
		return raw
	}
}
