package models

import (
	"time"
)

// DeadLetter wraps a change record that failed processing, for later inspection
type DeadLetter struct {
	// Original record
	Record ChangeRecord `json:"record"`

	// Why processing failed
	Error string `json:"error"`

	// Internal processing metadata
	FailedAt     time.Time `json:"failed_at"`
	Node         string    `json:"node"`
	BatchID      string    `json:"batch_id,omitempty"`
	BatchIndex   int       `json:"batch_index"`
	PartitionKey string    `json:"partition_key"`
}

// NewDeadLetter creates a dead letter for a failed record
func NewDeadLetter(record ChangeRecord, err error, node string) *DeadLetter {
	dl := &DeadLetter{
		Record:   record,
		FailedAt: time.Now().UTC(),
		Node:     node,
	}
	if err != nil {
		dl.Error = err.Error()
	}
	// partition by sensor so a sensor's failures stay ordered
	if id, ok := record.NewImage[AttrSensorID].Str(); ok {
		dl.PartitionKey = id
	}
	return dl
}

// WithBatch sets batch metadata on the dead letter
func (d *DeadLetter) WithBatch(batchID string, index int) *DeadLetter {
	d.BatchID = batchID
	d.BatchIndex = index
	return d
}
