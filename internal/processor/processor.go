// Package processor runs the read-evaluate-write cycle for each decoded
// measurement: look up subscriptions, evaluate every (metric, subscriber)
// key, notify through the cooldown gate and persist the new state.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sensoralarm/internal/alerts"
	"sensoralarm/internal/directory"
	"sensoralarm/internal/logger"
	"sensoralarm/internal/metrics"
	"sensoralarm/internal/models"
	"sensoralarm/internal/notify"
	"sensoralarm/internal/state"
)

// Notifier delivers a rendered alarm to a subscriber.
type Notifier interface {
	Notify(ctx context.Context, sub models.Subscription, msg notify.Message) error
}

// Outcome describes what happened to one change record.
type Outcome int

const (
	// OutcomeSkipped: the record was not a usable measurement
	OutcomeSkipped Outcome = iota
	// OutcomeProcessed: the measurement was evaluated against its subscriptions
	OutcomeProcessed
)

func (o Outcome) String() string {
	if o == OutcomeProcessed {
		return "processed"
	}
	return "skipped"
}

// Processor evaluates measurements against their subscribers' thresholds.
// It holds no per-key state; everything is re-derived from the store.
type Processor struct {
	directory directory.Directory
	store     state.Store
	notifier  Notifier
	now       func() time.Time
}

// Option is a functional option for configuring the processor
type Option func(*Processor)

// WithClock overrides the wall clock used for cooldowns and notification times.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// New creates a record processor.
func New(dir directory.Directory, store state.Store, notifier Notifier, opts ...Option) *Processor {
	p := &Processor{
		directory: dir,
		store:     store,
		notifier:  notifier,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessRecord decodes a change record and processes the measurement it
// carries. Records that do not decode are skipped without error and without
// a directory lookup.
func (p *Processor) ProcessRecord(ctx context.Context, r models.ChangeRecord) (Outcome, error) {
	m, ok := models.DecodeMeasurement(r)
	if !ok {
		logger.WithComponent("decoder").Debug().
			Str("event_id", r.EventID).
			Str("event_type", r.EventType).
			Msg("record skipped")
		return OutcomeSkipped, nil
	}

	if err := p.ProcessMeasurement(ctx, m); err != nil {
		return OutcomeProcessed, err
	}
	return OutcomeProcessed, nil
}

// ProcessMeasurement evaluates every measured metric for every active
// subscriber with a threshold on it. Subscriptions are fetched once and
// shared across metrics. Directory and store errors abort the measurement.
func (p *Processor) ProcessMeasurement(ctx context.Context, m *models.Measurement) error {
	log := logger.WithSensor("processor", m.SensorID)

	subs, err := p.directory.ListSubscriptions(ctx, m.SensorID)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		log.Debug().Msg("no subscriptions for sensor")
		return nil
	}

	for _, metric := range m.Metrics() {
		value := m.Fields[metric]
		for _, sub := range subs {
			if !sub.Active {
				continue
			}
			th, ok := sub.Threshold(metric)
			if !ok {
				continue
			}

			key := models.StateKey{SensorID: m.SensorID, Metric: metric, SubscriberID: sub.SubscriberID}
			if err := p.evaluate(ctx, m, key, value, th, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// evaluate runs read -> evaluate -> gate -> notify -> write for one key.
func (p *Processor) evaluate(ctx context.Context, m *models.Measurement, key models.StateKey,
	value float64, th models.ThresholdConfig, sub models.Subscription) error {

	log := logger.WithSensor("processor", key.SensorID).With().
		Str("metric", key.Metric).
		Str("subscriber_id", key.SubscriberID).
		Float64("value", value).
		Logger()

	prev, err := p.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	prevKind := alerts.NoState
	var lastNotifiedAt *time.Time
	if prev != nil {
		prevKind = prev.LastState
		lastNotifiedAt = prev.LastNotifiedAt
	}

	cur := alerts.Evaluate(value, th, prevKind)
	now := p.now()
	decision := alerts.Gate(alerts.GateInput{
		New:            cur,
		Prev:           prevKind,
		LastNotifiedAt: lastNotifiedAt,
		Cooldown:       sub.Cooldown(),
		Now:            now,
	})

	metrics.EvaluationsTotal.WithLabelValues(string(cur)).Inc()
	if decision.Changed {
		from := string(prevKind)
		if prevKind == alerts.NoState {
			from = "none"
		}
		metrics.TransitionsTotal.WithLabelValues(from, string(cur)).Inc()
		log.Info().
			Str("prev_state", from).
			Str("state", string(cur)).
			Msg("alarm state changed")
	}

	switch {
	case decision.Notify:
		msg := notify.Render(notify.Alarm{
			SensorID:  key.SensorID,
			Metric:    key.Metric,
			Value:     value,
			State:     cur,
			Threshold: th,
			At:        m.Time(),
		})

		if err := p.notifier.Notify(ctx, sub, msg); err != nil {
			// keep the clock where it was so the next qualifying event retries
			logNotifyFailure(log, err)
			return p.write(ctx, key, prev, models.AlarmState{LastState: cur, LastNotifiedAt: lastNotifiedAt}, "notify_failed")
		}

		log.Info().Str("state", string(cur)).Msg("alarm notification sent")
		return p.write(ctx, key, prev, models.AlarmState{LastState: cur, LastNotifiedAt: &now}, "notified")

	case decision.Persist:
		reason := "transition"
		if !decision.Changed {
			reason = "cooldown"
			metrics.NotificationsSuppressed.Inc()
			log.Debug().Str("state", string(cur)).Msg("notification suppressed by cooldown")
		}
		return p.write(ctx, key, prev, models.AlarmState{LastState: cur, LastNotifiedAt: lastNotifiedAt}, reason)

	default:
		return nil
	}
}

// write persists next unless it is identical to what is already stored.
func (p *Processor) write(ctx context.Context, key models.StateKey, prev *models.AlarmState, next models.AlarmState, reason string) error {
	if prev != nil && prev.Equal(next) {
		metrics.StateWritesElided.Inc()
		return nil
	}
	if err := p.store.Put(ctx, key, next); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	metrics.StateWritesTotal.WithLabelValues(reason).Inc()
	return nil
}

func logNotifyFailure(log zerolog.Logger, err error) {
	if errors.Is(err, notify.ErrNoChannels) {
		log.Warn().Msg("alarm has no deliverable channel; state recorded without notification")
		return
	}
	log.Error().Err(err).Msg("alarm notification failed; state recorded, will retry on next event")
}
