package attendance

import (
	"errors"
	"math"
	"time"
)

const earthRadiusMeters = 6371000.0

// Radius bounds guard against misconfiguration: a school gate is tens of
// meters wide, a campus a few thousand at most.
const (
	minRadiusMeters = 10.0
	maxRadiusMeters = 50000.0
)

var ErrInvalidRadius = errors.New("radius must be between 10 and 50000 meters")

// SchoolLocation is the singleton geofence configuration: a circular
// boundary around the school coordinates. AllowOutOfRange is an operator
// override for drills and remote days.
type SchoolLocation struct {
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	RadiusMeters    float64   `json:"radius_meters"`
	AllowOutOfRange bool      `json:"allow_out_of_range"`
	UpdatedAt       time.Time `json:"updated_at"` // UTC
}

func (l SchoolLocation) Validate() error {
	if l.RadiusMeters < minRadiusMeters || l.RadiusMeters > maxRadiusMeters {
		return ErrInvalidRadius
	}
	return nil
}

// DistanceMeters returns the great-circle distance from the school to the
// given coordinates, using the haversine formula.
func (l SchoolLocation) DistanceMeters(lat, lng float64) float64 {
	lat1 := radians(l.Latitude)
	lat2 := radians(lat)
	dLat := radians(lat - l.Latitude)
	dLng := radians(lng - l.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

// IsWithinRange reports whether the coordinates fall inside the fence.
func (l SchoolLocation) IsWithinRange(lat, lng float64) bool {
	if l.AllowOutOfRange {
		return true
	}
	return l.DistanceMeters(lat, lng) <= l.RadiusMeters
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
