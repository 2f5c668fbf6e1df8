package models

import (
	"math"
	"strings"
	"time"
)

// Notification channels a subscriber can opt into
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// DefaultCooldownSeconds applies when a subscription does not set cooldownSeconds.
const DefaultCooldownSeconds = 1800

// ThresholdConfig bounds a single metric for one subscriber.
type ThresholdConfig struct {
	Min *float64 `json:"min,omitempty" dynamodbav:"min,omitempty"`
	Max *float64 `json:"max,omitempty" dynamodbav:"max,omitempty"`

	// Dead-band resisting the return from an alarm to ok; >= 0
	Hysteresis float64 `json:"hysteresis,omitempty" dynamodbav:"hysteresis,omitempty"`
}

// Defined reports whether the threshold has at least one bound.
func (t ThresholdConfig) Defined() bool {
	return t.Min != nil || t.Max != nil
}

// Subscription is a subscriber's interest in one sensor. Owned by the
// subscription directory, read-only here.
type Subscription struct {
	SensorID     string `json:"sensorId" dynamodbav:"sensorId"`
	SubscriberID string `json:"subscriberId" dynamodbav:"subscriberId"`
	Active       bool   `json:"active" dynamodbav:"active"`

	Channels    []string `json:"channels,omitempty" dynamodbav:"channels,omitempty,stringset"`
	Email       string   `json:"email,omitempty" dynamodbav:"email,omitempty"`
	PhoneNumber string   `json:"phoneNumber,omitempty" dynamodbav:"phoneNumber,omitempty"`

	Thresholds map[string]ThresholdConfig `json:"thresholds,omitempty" dynamodbav:"thresholds,omitempty"`

	// nil means DefaultCooldownSeconds; 0 or less disables the cooldown
	CooldownSeconds *int64 `json:"cooldownSeconds,omitempty" dynamodbav:"cooldownSeconds,omitempty"`
}

// Threshold returns the threshold for a metric, if one with at least one bound is configured.
func (s Subscription) Threshold(metric string) (ThresholdConfig, bool) {
	th, ok := s.Thresholds[metric]
	if !ok || !th.Defined() {
		return ThresholdConfig{}, false
	}
	return th, true
}

// largest cooldown representable as a time.Duration
const maxCooldownSeconds = math.MaxInt64 / int64(time.Second)

// Cooldown returns the minimum spacing between repeat notifications.
func (s Subscription) Cooldown() time.Duration {
	secs := int64(DefaultCooldownSeconds)
	if s.CooldownSeconds != nil {
		secs = *s.CooldownSeconds
	}
	if secs <= 0 {
		return 0
	}
	if secs > maxCooldownSeconds {
		secs = maxCooldownSeconds
	}
	return time.Duration(secs) * time.Second
}

// Wants reports whether the subscriber opted into the channel.
func (s Subscription) Wants(channel string) bool {
	for _, c := range s.Channels {
		if strings.EqualFold(strings.TrimSpace(c), channel) {
			return true
		}
	}
	return false
}
