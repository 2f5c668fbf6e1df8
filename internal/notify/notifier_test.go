package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sensoralarm/internal/models"
)

// MockEmail fails the first failures calls, then succeeds.
type MockEmail struct {
	calls    atomic.Int32
	failures int32

	mu   sync.Mutex
	sent []string
}

func (m *MockEmail) SendEmail(ctx context.Context, to, from, subject, body string) error {
	n := m.calls.Add(1)
	if n <= m.failures {
		return errors.New("email provider unavailable")
	}
	m.mu.Lock()
	m.sent = append(m.sent, to+"|"+from+"|"+subject)
	m.mu.Unlock()
	return nil
}

// MockSMS fails the first failures calls, then succeeds.
type MockSMS struct {
	calls    atomic.Int32
	failures int32

	mu   sync.Mutex
	sent []string
}

func (m *MockSMS) SendSMS(ctx context.Context, phone, body string) error {
	n := m.calls.Add(1)
	if n <= m.failures {
		return errors.New("sms throttled")
	}
	m.mu.Lock()
	m.sent = append(m.sent, phone+"|"+body)
	m.mu.Unlock()
	return nil
}

func subscription() models.Subscription {
	return models.Subscription{
		SensorID:     "s1",
		SubscriberID: "u1",
		Active:       true,
		Channels:     []string{models.ChannelEmail, models.ChannelSMS},
		Email:        "ops@example.com",
		PhoneNumber:  "+15550100",
	}
}

var testMessage = Message{Subject: "subject", Body: "body", Short: "short"}

func TestNotifyBothChannels(t *testing.T) {
	email, sms := &MockEmail{}, &MockSMS{}
	n := New(WithEmail(email, "alarms@example.com"), WithSMS(sms))

	if err := n.Notify(context.Background(), subscription(), testMessage); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if len(email.sent) != 1 || email.sent[0] != "ops@example.com|alarms@example.com|subject" {
		t.Errorf("unexpected emails %v", email.sent)
	}
	if len(sms.sent) != 1 || sms.sent[0] != "+15550100|short" {
		t.Errorf("unexpected texts %v", sms.sent)
	}
}

func TestNotifyRetriesOnce(t *testing.T) {
	email := &MockEmail{failures: 1}
	n := New(WithEmail(email, "alarms@example.com"))

	sub := subscription()
	sub.Channels = []string{models.ChannelEmail}

	if err := n.Notify(context.Background(), sub, testMessage); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if email.calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", email.calls.Load())
	}
}

func TestNotifyChannelsAreIndependent(t *testing.T) {
	email := &MockEmail{failures: 10}
	sms := &MockSMS{}
	n := New(WithEmail(email, "alarms@example.com"), WithSMS(sms))

	err := n.Notify(context.Background(), subscription(), testMessage)

	var derr *DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("expected *DeliveryError, got %v", err)
	}
	if len(derr.Failures) != 1 || derr.Failures[0].Channel != models.ChannelEmail {
		t.Errorf("unexpected failures %+v", derr.Failures)
	}
	if email.calls.Load() != 2 {
		t.Errorf("expected exactly 2 email attempts, got %d", email.calls.Load())
	}
	if len(sms.sent) != 1 {
		t.Errorf("sms should still be delivered, got %v", sms.sent)
	}
}

func TestNotifyAggregatesMessages(t *testing.T) {
	email := &MockEmail{failures: 10}
	sms := &MockSMS{failures: 10}
	n := New(WithEmail(email, "alarms@example.com"), WithSMS(sms))

	err := n.Notify(context.Background(), subscription(), testMessage)
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "email provider unavailable") || !strings.Contains(msg, "sms throttled") {
		t.Errorf("aggregate error should carry both channel messages, got %q", msg)
	}
	if email.calls.Load() != 2 || sms.calls.Load() != 2 {
		t.Errorf("expected 2 attempts per channel, got %d/%d", email.calls.Load(), sms.calls.Load())
	}
}

func TestNotifyChannelSelection(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*models.Subscription)
		from      string
		wantEmail int
		wantSMS   int
		wantErr   error
	}{
		{"email only", func(s *models.Subscription) { s.Channels = []string{"email"} }, "alarms@example.com", 1, 0, nil},
		{"sms only", func(s *models.Subscription) { s.Channels = []string{"sms"} }, "alarms@example.com", 0, 1, nil},
		{"no sender identity", func(s *models.Subscription) {}, "", 0, 1, nil},
		{"missing email address", func(s *models.Subscription) { s.Email = "" }, "alarms@example.com", 0, 1, nil},
		{"missing phone number", func(s *models.Subscription) { s.PhoneNumber = "" }, "alarms@example.com", 1, 0, nil},
		{"no channels", func(s *models.Subscription) { s.Channels = nil }, "alarms@example.com", 0, 0, ErrNoChannels},
		{"unknown channel", func(s *models.Subscription) { s.Channels = []string{"pager"} }, "alarms@example.com", 0, 0, ErrNoChannels},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, sms := &MockEmail{}, &MockSMS{}
			n := New(WithEmail(email, tt.from), WithSMS(sms))

			sub := subscription()
			tt.modify(&sub)

			err := n.Notify(context.Background(), sub, testMessage)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Notify() error = %v, want %v", err, tt.wantErr)
			}
			if int(email.calls.Load()) != tt.wantEmail || int(sms.calls.Load()) != tt.wantSMS {
				t.Errorf("expected %d email / %d sms calls, got %d/%d",
					tt.wantEmail, tt.wantSMS, email.calls.Load(), sms.calls.Load())
			}
		})
	}
}

func TestNotifyStopsRetryingOnCancel(t *testing.T) {
	email := &MockEmail{failures: 10}
	n := New(WithEmail(email, "alarms@example.com"))

	sub := subscription()
	sub.Channels = []string{models.ChannelEmail}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.Notify(ctx, sub, testMessage); err == nil {
		t.Fatal("expected an error")
	}
	if email.calls.Load() != 1 {
		t.Errorf("expected a single attempt after cancellation, got %d", email.calls.Load())
	}
}

func TestRender(t *testing.T) {
	maxTemp := 30.0
	msg := Render(Alarm{
		SensorID:  "s1",
		Metric:    "temperature",
		Value:     31.2,
		State:     models.StateHigh,
		Threshold: models.ThresholdConfig{Max: &maxTemp},
		At:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})

	if msg.Subject != "[ALARM] s1 temperature HIGH" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"31.2", "HIGH", "Max:       30", "2024-05-01T12:00:00Z"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
	if strings.Contains(msg.Body, "Min:") {
		t.Error("body should not mention an unset min")
	}
	if strings.Contains(msg.Short, "\n") {
		t.Errorf("sms text should be a single line, got %q", msg.Short)
	}
}
