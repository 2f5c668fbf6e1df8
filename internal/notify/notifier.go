// Package notify delivers alarm notifications over email and SMS.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sensoralarm/internal/logger"
	"sensoralarm/internal/metrics"
	"sensoralarm/internal/models"
)

// ErrNoChannels is returned when a subscription has no channel that can be delivered to.
var ErrNoChannels = errors.New("no deliverable notification channel")

// EmailSender sends one email. Implementations make a single remote call.
type EmailSender interface {
	SendEmail(ctx context.Context, to, from, subject, body string) error
}

// SMSSender sends one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, phoneNumber, body string) error
}

// Message is a rendered alarm notification.
type Message struct {
	Subject string
	Body    string
	// Single-line variant for SMS
	Short string
}

// ChannelError records a channel that still failed after all attempts.
type ChannelError struct {
	Channel  string
	Attempts int
	Err      error
}

func (e ChannelError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Channel, e.Attempts, e.Err)
}

func (e ChannelError) Unwrap() error { return e.Err }

// DeliveryError aggregates the channels that failed for one notification.
type DeliveryError struct {
	Failures []ChannelError
}

func (e *DeliveryError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the per-channel errors to errors.Is and errors.As.
func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Notifier fans a message out to the channels a subscriber opted into.
type Notifier struct {
	email       EmailSender
	sms         SMSSender
	sender      string
	maxAttempts int
}

// Option is a functional option for configuring the notifier
type Option func(*Notifier)

// WithEmail enables the email channel, sending from the given verified identity.
func WithEmail(sender EmailSender, from string) Option {
	return func(n *Notifier) {
		n.email = sender
		n.sender = from
	}
}

// WithSMS enables the SMS channel.
func WithSMS(sender SMSSender) Option {
	return func(n *Notifier) {
		n.sms = sender
	}
}

// WithMaxAttempts sets the total attempts per channel, including the first.
func WithMaxAttempts(n int) Option {
	return func(nt *Notifier) {
		if n > 0 {
			nt.maxAttempts = n
		}
	}
}

// New creates a notifier. Without options no channel is deliverable.
func New(opts ...Option) *Notifier {
	n := &Notifier{maxAttempts: 2}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type delivery struct {
	channel string
	send    func(ctx context.Context) error
}

// deliveries returns the channels that can be attempted for the subscriber.
func (n *Notifier) deliveries(sub models.Subscription, msg Message) []delivery {
	var out []delivery

	if sub.Wants(models.ChannelEmail) && sub.Email != "" && n.sender != "" && n.email != nil {
		out = append(out, delivery{
			channel: models.ChannelEmail,
			send: func(ctx context.Context) error {
				return n.email.SendEmail(ctx, sub.Email, n.sender, msg.Subject, msg.Body)
			},
		})
	}

	if sub.Wants(models.ChannelSMS) && sub.PhoneNumber != "" && n.sms != nil {
		body := msg.Short
		if body == "" {
			body = msg.Body
		}
		out = append(out, delivery{
			channel: models.ChannelSMS,
			send: func(ctx context.Context) error {
				return n.sms.SendSMS(ctx, sub.PhoneNumber, body)
			},
		})
	}

	return out
}

// Notify delivers msg on every eligible channel of the subscription. Each
// channel is tried up to maxAttempts times, independently of the others.
// It returns a *DeliveryError when any channel still failed, or
// ErrNoChannels when nothing could be attempted.
func (n *Notifier) Notify(ctx context.Context, sub models.Subscription, msg Message) error {
	log := logger.WithComponent("notifier").With().
		Str("sensor_id", sub.SensorID).
		Str("subscriber_id", sub.SubscriberID).
		Logger()

	targets := n.deliveries(sub, msg)
	if len(targets) == 0 {
		log.Warn().
			Strs("channels", sub.Channels).
			Msg("subscription has no deliverable channel")
		return ErrNoChannels
	}

	var failures []ChannelError
	for _, d := range targets {
		if err := n.sendWithRetry(ctx, d); err != nil {
			failures = append(failures, ChannelError{Channel: d.channel, Attempts: n.maxAttempts, Err: err})
			metrics.NotificationsTotal.WithLabelValues(d.channel, "failed").Inc()
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(d.channel, "success").Inc()
		log.Debug().Str("channel", d.channel).Msg("notification delivered")
	}

	if len(failures) > 0 {
		return &DeliveryError{Failures: failures}
	}
	return nil
}

// sendWithRetry makes up to maxAttempts immediate attempts.
func (n *Notifier) sendWithRetry(ctx context.Context, d delivery) error {
	log := logger.WithComponent("notifier").With().Str("channel", d.channel).Logger()
	var lastErr error

	for attempt := 0; attempt < n.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			log.Warn().
				Int("attempt", attempt+1).
				Msg("retrying notification")
			metrics.NotificationRetries.WithLabelValues(d.channel).Inc()
		}

		err := d.send(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Msg("notification attempt failed")
	}

	log.Error().
		Err(lastErr).
		Int("max_attempts", n.maxAttempts).
		Msg("notification failed after all attempts")

	return lastErr
}
