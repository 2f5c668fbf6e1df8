package alerts

import (
	"time"

	"sensoralarm/internal/models"
)

// GateInput is everything the cooldown gate looks at.
type GateInput struct {
	New            models.AlarmKind
	Prev           models.AlarmKind // NoState on first observation
	LastNotifiedAt *time.Time
	Cooldown       time.Duration
	Now            time.Time
}

// GateDecision says what to do with a freshly evaluated state.
type GateDecision struct {
	// Send a notification now
	Notify bool

	// Without a notification, record the state anyway (lastNotifiedAt unchanged)
	Persist bool

	Changed        bool
	Alarm          bool
	CooldownActive bool
}

// Gate applies the notification cooldown. Alarms notify on a state change
// or once the cooldown has elapsed. Transitions back to ok and alarms held
// by an active cooldown are persisted without notifying; a steady ok is
// neither notified nor persisted.
func Gate(in GateInput) GateDecision {
	d := GateDecision{
		Alarm:   in.New.IsAlarm(),
		Changed: in.Prev == NoState || in.New != in.Prev,
	}

	if in.Cooldown > 0 && in.LastNotifiedAt != nil {
		d.CooldownActive = in.Now.Sub(*in.LastNotifiedAt) < in.Cooldown
	}

	d.Notify = d.Alarm && (d.Changed || !d.CooldownActive)
	if !d.Notify {
		d.Persist = d.Changed || (d.Alarm && d.CooldownActive)
	}
	return d
}
