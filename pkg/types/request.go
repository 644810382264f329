package types

import "time"

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusActive    RequestStatus = "active"
	RequestStatusFulfilled RequestStatus = "fulfilled"
	RequestStatusCancelled RequestStatus = "cancelled"
	RequestStatusExpired   RequestStatus = "expired"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusActive, RequestStatusFulfilled, RequestStatusCancelled, RequestStatusExpired:
		return true
	}
	return false
}

func (s RequestStatus) Terminal() bool {
	return s == RequestStatusFulfilled || s == RequestStatusCancelled || s == RequestStatusExpired
}

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// Rank orders urgencies for sorting, most urgent first. Unknown values sort last.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 3
	}
	return 4
}

func (u Urgency) Valid() bool {
	return u.Rank() < 4
}

type BloodRequest struct {
	ID          string        `db:"id" json:"id"`
	UserID      string        `db:"user_id" json:"userId"`
	PatientName string        `db:"patient_name" json:"patientName"`
	BloodType   BloodType     `db:"blood_type" json:"bloodType"`
	Units       int           `db:"units" json:"units"`
	Hospital    string        `db:"hospital" json:"hospital"`
	Urgency     Urgency       `db:"urgency" json:"urgency"`
	Notes       string        `db:"notes" json:"notes"`
	Status      RequestStatus `db:"status" json:"status"`
	RequiredBy  *time.Time    `db:"required_by" json:"requiredBy,omitempty"`
	ExpiresAt   time.Time     `db:"expires_at" json:"expiresAt"`
	ResponseIDs []string      `db:"response_ids" json:"responses"`
	FulfilledBy *string       `db:"fulfilled_by" json:"fulfilledBy,omitempty"`
	FulfilledAt *time.Time    `db:"fulfilled_at" json:"fulfilledAt,omitempty"`

	ContactInfo `json:"contact"`
	Address     `json:"address"`
	Coordinates `json:"location"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Open reports whether donors may still respond at now.
func (r *BloodRequest) Open(now time.Time) bool {
	return r.Status == RequestStatusActive && !now.After(r.ExpiresAt)
}

func (r *BloodRequest) Clone() *BloodRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.RequiredBy = cloneTime(r.RequiredBy)
	c.FulfilledAt = cloneTime(r.FulfilledAt)
	if r.FulfilledBy != nil {
		v := *r.FulfilledBy
		c.FulfilledBy = &v
	}
	c.ResponseIDs = cloneStrings(r.ResponseIDs)
	c.Coordinates = r.Coordinates.clone()
	return &c
}

type CreateRequestInput struct {
	PatientName string      `json:"patientName"`
	BloodType   BloodType   `json:"bloodType"`
	Units       int         `json:"units"`
	Hospital    string      `json:"hospital"`
	Urgency     Urgency     `json:"urgency"`
	Notes       string      `json:"notes"`
	RequiredBy  *time.Time  `json:"requiredBy"`
	Contact     ContactInfo `json:"contact"`
	Address     Address     `json:"address"`
	Location    *GeoPoint   `json:"location"`
	// Draft requests start pending and must be activated before donors can respond.
	Draft bool `json:"draft"`
}

// RequestUpdate is a patch; nil fields keep their current value.
type RequestUpdate struct {
	PatientName *string      `json:"patientName"`
	Units       *int         `json:"units"`
	Hospital    *string      `json:"hospital"`
	Urgency     *Urgency     `json:"urgency"`
	Notes       *string      `json:"notes"`
	RequiredBy  *time.Time   `json:"requiredBy"`
	Contact     *ContactInfo `json:"contact"`
	Address     *Address     `json:"address"`
	Location    *GeoPoint    `json:"location"`
}

type RequestFilter struct {
	UserID     string
	BloodTypes []BloodType
	Status     RequestStatus
	Urgency    Urgency
}
