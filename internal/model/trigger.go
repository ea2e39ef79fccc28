package model

import (
	"encoding/json"
	"time"
)

// TriggerEvent is published every time a scheduled job fires
type TriggerEvent struct {
	ID         string          `json:"id"`
	ScheduleID string          `json:"schedule_id"`
	Name       string          `json:"name"`
	Marker     string          `json:"marker"`
	NextMarker string          `json:"next_marker"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	FiredAt    time.Time       `json:"fired_at"`
}

// TriggerStatus represents the delivery outcome of a trigger
type TriggerStatus string

const (
	TriggerStatusPublished TriggerStatus = "published"
	TriggerStatusFailed    TriggerStatus = "failed"
)

// TriggerRecord is a historical trigger entry
type TriggerRecord struct {
	ID         string        `json:"id"`
	ScheduleID string        `json:"schedule_id"`
	Name       string        `json:"name"`
	Marker     string        `json:"marker"`
	Status     TriggerStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	FiredAt    time.Time     `json:"fired_at"`
}
