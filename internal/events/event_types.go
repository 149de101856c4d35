package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventStorageChanged fires when a context writes or removes a store key.
	EventStorageChanged EventType = "storage_changed"

	EventClientRegistered EventType = "client_registered"
	EventStaffAdded       EventType = "staff_added"
	EventFeedbackReceived EventType = "feedback_received"
	EventDatasetUploaded  EventType = "dataset_uploaded"
	EventDatasetPredicted EventType = "dataset_predicted"
	EventDatasetExported  EventType = "dataset_exported"
)

// Event carries only the fact that something changed at Key.
// Receivers re-read the store instead of trusting any payload.
// Service events name their Subject and may attach a Payload.
type Event struct {
	Type      EventType      `json:"type"`
	Key       string         `json:"key,omitempty"`
	ContextID string         `json:"context_id,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
