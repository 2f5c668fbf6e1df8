package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"sensoralarm/internal/logger"
	"sensoralarm/internal/models"
	"sensoralarm/internal/worker"
)

// BatchProcessor processes a batch of change records.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, records []models.ChangeRecord) worker.Result
}

// BatchHandler accepts change-record batches over HTTP
type BatchHandler struct {
	processor BatchProcessor

	// Max body size (default 10MB)
	maxBodySize int64
}

// BatchConfig holds configuration for the batch handler
type BatchConfig struct {
	Processor   BatchProcessor
	MaxBodySize int64
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(cfg BatchConfig) *BatchHandler {
	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 10 * 1024 * 1024 // 10MB default
	}

	return &BatchHandler{
		processor:   cfg.Processor,
		maxBodySize: maxBodySize,
	}
}

// BatchRequest is the stream-event envelope: {"records": [...]}
type BatchRequest struct {
	Records []models.ChangeRecord `json:"records"`
}

var errInvalidBody = errors.New("invalid JSON format: expected {\"records\": [...]}, an array of records or a single record")

// ServeHTTP handles the batch HTTP request
func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !acceptsJSON(r.Header.Get("Content-Type")) {
		writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	records, err := parseBody(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.processor.ProcessBatch(r.Context(), records)

	logger.WithRequestID(r.Header.Get("X-Request-ID")).Debug().
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Msg("batch request handled")

	// per-record failures are reported in the body, not the status
	writeJSON(w, http.StatusOK, result)
}

// acceptsJSON allows a missing content type or application/json with any
// parameters, e.g. charset.
func acceptsJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// parseBody accepts the envelope, a bare array or a single record. An
// empty batch is valid.
func parseBody(body []byte) ([]models.ChangeRecord, error) {
	var req BatchRequest
	if err := json.Unmarshal(body, &req); err == nil && req.Records != nil {
		return req.Records, nil
	}

	var records []models.ChangeRecord
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}

	var single models.ChangeRecord
	if err := json.Unmarshal(body, &single); err == nil && (single.EventType != "" || single.NewImage != nil) {
		return []models.ChangeRecord{single}, nil
	}

	return nil, errInvalidBody
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
