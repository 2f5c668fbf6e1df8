// Package worker fans a batch of change records out over the record
// processor, isolating each record's failure from its siblings.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sensoralarm/internal/logger"
	"sensoralarm/internal/metrics"
	"sensoralarm/internal/models"
	"sensoralarm/internal/processor"
)

// RecordProcessor processes one change record.
type RecordProcessor interface {
	ProcessRecord(ctx context.Context, r models.ChangeRecord) (processor.Outcome, error)
}

// DeadLetterPublisher receives records that failed processing.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, dl *models.DeadLetter) error
}

// Result is the aggregate outcome of one batch.
type Result struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Failure describes one failed record of a batch.
type Failure struct {
	Index int
	Err   error
}

// Report is a Result plus the per-record failures, for callers that want them.
type Report struct {
	Result
	BatchID  string
	Skipped  int
	Failures []Failure
}

// Config holds batch handler configuration
type Config struct {
	Processor RecordProcessor

	// Max records in flight; 0 means unbounded
	Concurrency int

	// Optional sink for failed records
	DeadLetters DeadLetterPublisher

	// Node identifier stamped on dead letters
	NodeID string
}

// BatchHandler processes change-record batches concurrently.
type BatchHandler struct {
	processor   RecordProcessor
	concurrency int
	deadLetters DeadLetterPublisher
	nodeID      string

	// Metrics
	processed atomic.Uint64
	failed    atomic.Uint64
}

// NewBatchHandler creates a batch handler
func NewBatchHandler(cfg Config) *BatchHandler {
	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = "unknown"
	}
	return &BatchHandler{
		processor:   cfg.Processor,
		concurrency: cfg.Concurrency,
		deadLetters: cfg.DeadLetters,
		nodeID:      nodeID,
	}
}

// ProcessBatch processes every record and reports how many failed. It never
// returns an error: a failing record is counted, logged and, when a dead
// letter publisher is configured, handed to it.
func (h *BatchHandler) ProcessBatch(ctx context.Context, records []models.ChangeRecord) Result {
	return h.Process(ctx, records).Result
}

// Process is ProcessBatch with the per-record failures.
func (h *BatchHandler) Process(ctx context.Context, records []models.ChangeRecord) Report {
	batchID := uuid.New().String()
	log := logger.WithComponent("batch_handler").With().Str("batch_id", batchID).Logger()
	start := time.Now()

	metrics.BatchSize.Observe(float64(len(records)))
	log.Debug().Int("records", len(records)).Msg("processing batch")

	errs := make([]error, len(records))
	outcomes := make([]processor.Outcome, len(records))

	// each goroutine returns nil so one record never cancels another
	var g errgroup.Group
	if h.concurrency > 0 {
		g.SetLimit(h.concurrency)
	}
	for i := range records {
		i := i
		g.Go(func() error {
			outcomes[i], errs[i] = h.processOne(ctx, records[i])
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Result:  Result{Processed: len(records)},
		BatchID: batchID,
	}
	for i, err := range errs {
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{Index: i, Err: err})
			log.Error().
				Err(err).
				Int("record_index", i).
				Str("event_id", records[i].EventID).
				Msg("record failed")
			h.deadLetter(ctx, batchID, i, records[i], err)
			continue
		}
		if outcomes[i] == processor.OutcomeSkipped {
			report.Skipped++
		}
	}

	h.processed.Add(uint64(len(records)))
	h.failed.Add(uint64(report.Failed))
	metrics.RecordsTotal.WithLabelValues("processed").Add(float64(len(records) - report.Failed - report.Skipped))
	metrics.RecordsTotal.WithLabelValues("skipped").Add(float64(report.Skipped))
	metrics.RecordsTotal.WithLabelValues("failed").Add(float64(report.Failed))

	duration := time.Since(start)
	metrics.BatchDuration.Observe(duration.Seconds())

	ev := log.Info()
	if report.Failed > 0 {
		ev = log.Warn()
	}
	ev.Int("processed", report.Processed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("duration", duration).
		Msg("batch processed")

	return report
}

// processOne runs one record, turning a panic into an error.
func (h *BatchHandler) processOne(ctx context.Context, r models.ChangeRecord) (outcome processor.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.WithComponent("batch_handler").Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("event_id", r.EventID).
				Msg("record panic recovered")
			metrics.PanicsRecovered.WithLabelValues("batch_handler").Inc()
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	return h.processor.ProcessRecord(ctx, r)
}

func (h *BatchHandler) deadLetter(ctx context.Context, batchID string, index int, r models.ChangeRecord, cause error) {
	if h.deadLetters == nil {
		return
	}

	dl := models.NewDeadLetter(r, cause, h.nodeID).WithBatch(batchID, index)
	if err := h.deadLetters.Publish(ctx, dl); err != nil {
		logger.WithComponent("batch_handler").Error().
			Err(err).
			Int("record_index", index).
			Msg("failed to publish dead letter")
	}
}

// Stats returns cumulative batch handler statistics
func (h *BatchHandler) Stats() Stats {
	return Stats{
		Processed: h.processed.Load(),
		Failed:    h.failed.Load(),
	}
}

// Stats holds batch handler metrics
type Stats struct {
	Processed uint64
	Failed    uint64
}
