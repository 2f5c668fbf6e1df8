package models

import (
	"math"
	"strconv"
	"strings"
)

// Change-feed event types
const (
	EventInsert = "insert"
	EventModify = "modify"
	EventRemove = "remove"
)

// AttributeValue is a single typed attribute of a change-feed image.
// Exactly one of N or S is expected to be set; numbers travel as strings
// the same way DynamoDB streams encode them.
type AttributeValue struct {
	N *string `json:"N,omitempty"`
	S *string `json:"S,omitempty"`
}

// Number returns a numeric attribute value.
func Number(v float64) AttributeValue {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return AttributeValue{N: &s}
}

// String returns a string attribute value.
func String(v string) AttributeValue {
	return AttributeValue{S: &v}
}

// Float returns the numeric value, if the attribute holds a finite number.
// NaN and infinities are rejected since they compare false against any bound.
func (a AttributeValue) Float() (float64, bool) {
	if a.N == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*a.N), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Str returns the string value, if the attribute holds one.
func (a AttributeValue) Str() (string, bool) {
	if a.S == nil {
		return "", false
	}
	return *a.S, true
}

// ChangeRecord is one entry of a change-feed batch.
type ChangeRecord struct {
	// Upstream identifier, used only for logging and dead letters
	EventID string `json:"eventID,omitempty"`

	// insert, modify, remove (any case)
	EventType string `json:"eventName"`

	// Item image after the change; absent for removals
	NewImage map[string]AttributeValue `json:"newImage,omitempty"`
}

// IsInsert reports whether the record is an insert event.
func (r ChangeRecord) IsInsert() bool {
	return strings.EqualFold(strings.TrimSpace(r.EventType), EventInsert)
}
