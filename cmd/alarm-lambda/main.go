package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"sensoralarm/internal/config"
	"sensoralarm/internal/logger"
	"sensoralarm/internal/models"
	"sensoralarm/internal/pipeline"
	"sensoralarm/internal/worker"
)

type handler struct {
	batches *worker.BatchHandler
}

// handle never returns an error so the stream is not retried for records
// that already failed independently.
func (h *handler) handle(ctx context.Context, event events.DynamoDBEvent) (worker.Result, error) {
	return h.batches.ProcessBatch(ctx, convertRecords(event.Records)), nil
}

// convertRecords maps stream records onto change records. Only number and
// string attributes are carried; other types are left out of the image.
func convertRecords(in []events.DynamoDBEventRecord) []models.ChangeRecord {
	out := make([]models.ChangeRecord, 0, len(in))
	for _, r := range in {
		rec := models.ChangeRecord{
			EventID:   r.EventID,
			EventType: r.EventName,
		}
		if len(r.Change.NewImage) > 0 {
			rec.NewImage = make(map[string]models.AttributeValue, len(r.Change.NewImage))
			for name, av := range r.Change.NewImage {
				switch av.DataType() {
				case events.DataTypeNumber:
					n := av.Number()
					rec.NewImage[name] = models.AttributeValue{N: &n}
				case events.DataTypeString:
					s := av.String()
					rec.NewImage[name] = models.AttributeValue{S: &s}
				}
			}
		}
		out = append(out, rec)
	}
	return out
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.LogLevel)

	// built once per cold start and reused across invocations
	p, err := pipeline.Build(context.Background(), cfg, nil)
	if err != nil {
		logger.WithComponent("main").Fatal().Err(err).Msg("failed to build pipeline")
	}

	h := &handler{batches: p.Handler}
	lambda.Start(h.handle)
}
