package geo

import (
	"math"

	"github.com/pkg/errors"
)

const earthRadiusMeters = 6371000

var (
	// ErrFakeGPS means the reported accuracy is implausibly good, which in
	// practice only mock-location providers produce.
	ErrFakeGPS = errors.New("fake GPS detected")

	// ErrOutsideFence means the position is farther from the reference
	// point than the allowed radius.
	ErrOutsideFence = errors.New("position outside geofence")
)

// Position is a single geolocation reading. Accuracy is the radius of the
// 68% confidence circle in meters, as reported by the device.
type Position struct {
	Latitude  float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"required,min=-180,max=180"`
	Accuracy  float64 `json:"accuracy" validate:"min=0"`
}

// Fence is a circular geofence around a reference coordinate.
type Fence struct {
	Latitude    float64
	Longitude   float64
	Radius      float64
	MinAccuracy float64
}

// Check validates an exam-entry position. The spoof check runs first: a
// reading more accurate than any real GNSS fix is rejected as fake even if
// it lands inside the fence.
func (f Fence) Check(p Position) error {
	if p.Accuracy < f.MinAccuracy {
		return errors.Wrapf(ErrFakeGPS, "accuracy %.2f below %.2f", p.Accuracy, f.MinAccuracy)
	}
	d := Distance(f.Latitude, f.Longitude, p.Latitude, p.Longitude)
	if d > f.Radius {
		return errors.Wrapf(ErrOutsideFence, "distance %.1fm exceeds radius %.1fm", d, f.Radius)
	}
	return nil
}

// Distance returns the great-circle distance in meters between two
// coordinates, using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
