// Package geo provides the distance math and location capability used by
// geofenced check-in.
package geo

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/courtsidehq/courtside/internal/models"
)

// EarthRadiusMiles is the mean Earth radius used for geofence distances.
const EarthRadiusMiles = 3959.0

var (
	ErrMissingFix   = errors.New("gps fix is required")
	ErrInvalidFix   = errors.New("gps fix coordinates out of range")
	ErrFixTimeout   = errors.New("location acquisition timed out")
	ErrFixDenied    = errors.New("location permission denied")
	ErrFixUnavailed = errors.New("location unavailable")
)

// LocationProvider is the capability a caller supplies for acquiring a live
// GPS fix. Acquisition is I/O (device geolocation) and stays outside the
// engine; implementations should honor the context deadline, typically
// 20-30 seconds, and not retry on their own.
type LocationProvider interface {
	GetFix(ctx context.Context, timeout time.Duration) (models.GpsFix, error)
}

// ValidateFix rejects zero-value or out-of-range coordinates before they
// reach distance math.
func ValidateFix(fix models.GpsFix) error {
	if fix.Latitude == 0 && fix.Longitude == 0 {
		return ErrMissingFix
	}
	if fix.Latitude < -90 || fix.Latitude > 90 || fix.Longitude < -180 || fix.Longitude > 180 {
		return ErrInvalidFix
	}
	return nil
}

// DistanceMiles returns the great-circle (haversine) distance in miles
// between two coordinate pairs.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMiles * c
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
