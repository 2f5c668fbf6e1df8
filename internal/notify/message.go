package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sensoralarm/internal/models"
)

// Alarm is what a notification is rendered from.
type Alarm struct {
	SensorID  string
	Metric    string
	Value     float64
	State     models.AlarmKind
	Threshold models.ThresholdConfig
	At        time.Time
}

// Render builds the subject, body and SMS text for an alarm.
func Render(a Alarm) Message {
	state := strings.ToUpper(string(a.State))
	value := strconv.FormatFloat(a.Value, 'f', -1, 64)
	at := a.At.UTC().Format(time.RFC3339)

	var b strings.Builder
	fmt.Fprintf(&b, "Sensor:    %s\n", a.SensorID)
	fmt.Fprintf(&b, "Metric:    %s\n", a.Metric)
	fmt.Fprintf(&b, "Value:     %s\n", value)
	fmt.Fprintf(&b, "State:     %s\n", state)
	if a.Threshold.Min != nil {
		fmt.Fprintf(&b, "Min:       %s\n", strconv.FormatFloat(*a.Threshold.Min, 'f', -1, 64))
	}
	if a.Threshold.Max != nil {
		fmt.Fprintf(&b, "Max:       %s\n", strconv.FormatFloat(*a.Threshold.Max, 'f', -1, 64))
	}
	fmt.Fprintf(&b, "Measured:  %s\n", at)

	return Message{
		Subject: fmt.Sprintf("[ALARM] %s %s %s", a.SensorID, a.Metric, state),
		Body:    b.String(),
		Short:   fmt.Sprintf("ALARM %s %s=%s (%s) at %s", a.SensorID, a.Metric, value, state, at),
	}
}
