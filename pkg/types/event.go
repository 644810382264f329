package types

import "time"

type EventType string

const (
	EventRequestCreated       EventType = "request.created"
	EventRequestStatusChanged EventType = "request.statusChanged"
	EventResponseCreated      EventType = "response.created"
	EventResponseUpdated      EventType = "response.updated"
)

// Event is published after the state change it describes has committed.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	RequestID      string    `json:"requestId"`
	ResponseID     string    `json:"responseId,omitempty"`
	RequestOwner   string    `json:"requestOwner,omitempty"`
	ResponderID    string    `json:"responderId,omitempty"`
	BloodType      BloodType `json:"bloodType,omitempty"`
	Urgency        Urgency   `json:"urgency,omitempty"`
	Hospital       string    `json:"hospital,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Status         string    `json:"status,omitempty"`
	Location       *GeoPoint `json:"location,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Notification is a message addressed to one user.
type Notification struct {
	UserID string            `json:"userId"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}
