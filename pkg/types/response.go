package types

import "time"

type ResponseStatus string

const (
	ResponseStatusPending   ResponseStatus = "pending"
	ResponseStatusAccepted  ResponseStatus = "accepted"
	ResponseStatusRejected  ResponseStatus = "rejected"
	ResponseStatusCancelled ResponseStatus = "cancelled"
)

func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponseStatusPending, ResponseStatusAccepted, ResponseStatusRejected, ResponseStatusCancelled:
		return true
	}
	return false
}

type Response struct {
	ID            string         `db:"id" json:"id"`
	RequestID     string         `db:"request_id" json:"requestId"`
	UserID        string         `db:"user_id" json:"userId"`
	Status        ResponseStatus `db:"status" json:"status"`
	Message       string         `db:"message" json:"message"`
	ScheduledDate *time.Time     `db:"scheduled_date" json:"scheduledDate,omitempty"`

	ContactInfo `json:"contactInfo"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.ScheduledDate = cloneTime(r.ScheduledDate)
	return &c
}

type RespondInput struct {
	Message       string      `json:"message"`
	ContactInfo   ContactInfo `json:"contactInfo"`
	ScheduledDate *time.Time  `json:"scheduledDate"`
}

// ResponseUpdate is a patch. An empty Status leaves the status unchanged.
type ResponseUpdate struct {
	Status        ResponseStatus `json:"status"`
	Message       *string        `json:"message"`
	ScheduledDate *time.Time     `json:"scheduledDate"`
}

type ResponseFilter struct {
	RequestID string
	UserID    string
	Status    ResponseStatus
}
