package types

import "time"

type OperatingHours struct {
	Day   string `json:"day"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

type DonationCenter struct {
	ID                  string           `db:"id" json:"id"`
	Name                string           `db:"name" json:"name"`
	Phone               string           `db:"phone" json:"phone"`
	Email               string           `db:"email" json:"email"`
	Website             string           `db:"website" json:"website"`
	OperatingHours      []OperatingHours `db:"operating_hours" json:"operatingHours"`
	Services            []string         `db:"services" json:"services"`
	WalkInAllowed       bool             `db:"walk_in_allowed" json:"walkInAllowed"`
	AppointmentRequired bool             `db:"appointment_required" json:"appointmentRequired"`
	Active              bool             `db:"active" json:"active"`

	Address     `json:"address"`
	Coordinates `json:"location"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (c *DonationCenter) Offers(t DonationType) bool {
	for _, s := range c.Services {
		if s == string(t) {
			return true
		}
	}
	return false
}

func (c *DonationCenter) Clone() *DonationCenter {
	if c == nil {
		return nil
	}
	v := *c
	v.Services = cloneStrings(c.Services)
	if c.OperatingHours != nil {
		v.OperatingHours = append(make([]OperatingHours, 0, len(c.OperatingHours)), c.OperatingHours...)
	}
	v.Coordinates = c.Coordinates.clone()
	return &v
}

// CenterFilter matches centers offering any of Services.
type CenterFilter struct {
	Services   []DonationType
	ActiveOnly bool
}
