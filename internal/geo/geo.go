// Package geo computes great-circle distances between coordinates.
package geo

import (
	"math"

	"redblood/pkg/types"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Validate rejects coordinates outside [-90,90] x [-180,180] and non-finite values.
func Validate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return types.NewError(types.KindInvalidCoordinate, "coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 {
		return types.Errorf(types.KindInvalidCoordinate, "latitude %v is outside [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return types.Errorf(types.KindInvalidCoordinate, "longitude %v is outside [-180, 180]", lon)
	}
	return nil
}

// Point validates lat and lon and returns them as a GeoPoint.
func Point(lat, lon float64) (types.GeoPoint, error) {
	if err := Validate(lat, lon); err != nil {
		return types.GeoPoint{}, err
	}
	return types.GeoPoint{Latitude: lat, Longitude: lon}, nil
}

// DistanceKm returns the haversine distance between two coordinates in kilometres.
func DistanceKm(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := Validate(lat1, lon1); err != nil {
		return 0, err
	}
	if err := Validate(lat2, lon2); err != nil {
		return 0, err
	}
	return haversine(lat1, lon1, lat2, lon2), nil
}

func Distance(a, b types.GeoPoint) (float64, error) {
	return DistanceKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push a just past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
