package types

import "time"

// SortKey names the field a result list is ordered by.
type SortKey string

const (
	SortByCreatedAt SortKey = "createdAt"
	SortByUrgency   SortKey = "urgency"
	SortByDistance  SortKey = "distance"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// GeoQuery is the location part of a search. Both coordinates must be given together.
type GeoQuery struct {
	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64
}

// RequestQuery is decoded from the query string of request searches.
// CompatibleWith holds a donor blood type and keeps only requests that donor can serve.
type RequestQuery struct {
	Latitude       *float64      `form:"latitude"`
	Longitude      *float64      `form:"longitude"`
	RadiusKm       *float64      `form:"radius"`
	BloodType      BloodType     `form:"bloodType"`
	CompatibleWith BloodType     `form:"compatibleWith"`
	Status         RequestStatus `form:"status"`
	Urgency        Urgency       `form:"urgency"`
	SortBy         SortKey       `form:"sortBy"`
	Order          SortOrder     `form:"order"`
	Limit          int           `form:"limit"`
}

// DonorQuery searches donors who can give to a recipient type.
// EligibleOnly drops donors still inside the minimum interval since their last donation.
type DonorQuery struct {
	Latitude     *float64  `form:"latitude"`
	Longitude    *float64  `form:"longitude"`
	RadiusKm     *float64  `form:"radius"`
	EligibleOnly bool      `form:"eligibleOnly"`
	SortBy       SortKey   `form:"sortBy"`
	Order        SortOrder `form:"order"`
	Limit        int       `form:"limit"`
}

type CenterQuery struct {
	Latitude  *float64       `form:"latitude"`
	Longitude *float64       `form:"longitude"`
	RadiusKm  *float64       `form:"radius"`
	Services  []DonationType `form:"services"`
	// Active defaults to true; pass active=false to include closed centers.
	Active *bool `form:"active"`
	Limit  int   `form:"limit"`
}

type DonationQuery struct {
	Status       DonationStatus `form:"status"`
	DonationType DonationType   `form:"donationType"`
	From         *time.Time     `form:"from"`
	To           *time.Time     `form:"to"`
	Order        SortOrder      `form:"order"`
	Limit        int            `form:"limit"`
}

func (q RequestQuery) Geo() GeoQuery {
	return GeoQuery{Latitude: q.Latitude, Longitude: q.Longitude, RadiusKm: q.RadiusKm}
}

func (q DonorQuery) Geo() GeoQuery {
	return GeoQuery{Latitude: q.Latitude, Longitude: q.Longitude, RadiusKm: q.RadiusKm}
}

func (q CenterQuery) Geo() GeoQuery {
	return GeoQuery{Latitude: q.Latitude, Longitude: q.Longitude, RadiusKm: q.RadiusKm}
}
