package types

// GeoPoint is a validated coordinate pair in decimal degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinates is the optional location carried by users, requests and centers.
// Both columns are nullable; a record has a location only when both are set.
type Coordinates struct {
	Latitude  *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64 `db:"longitude" json:"longitude,omitempty"`
}

func (c Coordinates) Point() (GeoPoint, bool) {
	if c.Latitude == nil || c.Longitude == nil {
		return GeoPoint{}, false
	}
	return GeoPoint{Latitude: *c.Latitude, Longitude: *c.Longitude}, true
}

func CoordinatesOf(p GeoPoint) Coordinates {
	lat, lon := p.Latitude, p.Longitude
	return Coordinates{Latitude: &lat, Longitude: &lon}
}

type Address struct {
	Street  string `db:"street" json:"street"`
	City    string `db:"city" json:"city"`
	State   string `db:"state" json:"state"`
	ZipCode string `db:"zip_code" json:"zipCode"`
	Country string `db:"country" json:"country"`
}

type ContactInfo struct {
	Name  string `db:"contact_name" json:"name"`
	Phone string `db:"contact_phone" json:"phone"`
	Email string `db:"contact_email" json:"email"`
}
