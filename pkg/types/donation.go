package types

import "time"

type DonationType string

const (
	DonationTypeWholeBlood     DonationType = "whole_blood"
	DonationTypePlasma         DonationType = "plasma"
	DonationTypePlatelets      DonationType = "platelets"
	DonationTypeDoubleRedCells DonationType = "double_red_cells"
)

func (t DonationType) Valid() bool {
	switch t {
	case DonationTypeWholeBlood, DonationTypePlasma, DonationTypePlatelets, DonationTypeDoubleRedCells:
		return true
	}
	return false
}

type DonationStatus string

const (
	DonationStatusScheduled DonationStatus = "scheduled"
	DonationStatusCompleted DonationStatus = "completed"
	DonationStatusCancelled DonationStatus = "cancelled"
	DonationStatusNoShow    DonationStatus = "no_show"
	DonationStatusDeferred  DonationStatus = "deferred"
)

func (s DonationStatus) Valid() bool {
	switch s {
	case DonationStatusScheduled, DonationStatusCompleted, DonationStatusCancelled, DonationStatusNoShow, DonationStatusDeferred:
		return true
	}
	return false
}

type Donation struct {
	ID              string         `db:"id" json:"id"`
	UserID          string         `db:"user_id" json:"userId"`
	CenterID        string         `db:"center_id" json:"donationCenterId"`
	AppointmentDate time.Time      `db:"appointment_date" json:"appointmentDate"`
	DonationType    DonationType   `db:"donation_type" json:"donationType"`
	Status          DonationStatus `db:"status" json:"status"`
	Units           int            `db:"units" json:"units"`
	HemoglobinLevel *float64       `db:"hemoglobin_level" json:"hemoglobinLevel,omitempty"`
	Notes           string         `db:"notes" json:"notes"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

func (d *Donation) Clone() *Donation {
	if d == nil {
		return nil
	}
	c := *d
	c.HemoglobinLevel = cloneFloat(d.HemoglobinLevel)
	c.CompletedAt = cloneTime(d.CompletedAt)
	return &c
}

type ScheduleInput struct {
	CenterID        string       `json:"donationCenterId"`
	AppointmentDate time.Time    `json:"appointmentDate"`
	DonationType    DonationType `json:"donationType"`
	Units           int          `json:"units"`
	Notes           string       `json:"notes"`
}

// DonationOutcome records what happened at an appointment.
type DonationOutcome struct {
	Status          DonationStatus `json:"status"`
	HemoglobinLevel *float64       `json:"hemoglobinLevel"`
	Notes           *string        `json:"notes"`
}

type DonationFilter struct {
	UserID       string
	Status       DonationStatus
	DonationType DonationType
	From         *time.Time
	To           *time.Time
	Ascending    bool
}
