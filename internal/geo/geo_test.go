package geo

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

// Monas, Jakarta — the reference point used across these tests.
const (
	refLat = -6.175392
	refLon = 106.827153
)

func testFence() Fence {
	return Fence{Latitude: refLat, Longitude: refLon, Radius: 100, MinAccuracy: 0.5}
}

func TestDistance_KnownValues(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64 // meters
		tolerance              float64
	}{
		{"same point", refLat, refLon, refLat, refLon, 0, 0.01},
		{"one degree latitude", 0, 0, 1, 0, 111195, 200},
		{"jakarta to bandung", refLat, refLon, -6.914744, 107.609810, 117000, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Fatalf("Distance() = %.1f, want %.1f ± %.1f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestFence_InsideIsAccepted(t *testing.T) {
	// ~30m east of the reference point
	pos := Position{Latitude: refLat, Longitude: refLon + 0.00027, Accuracy: 15}
	if err := testFence().Check(pos); err != nil {
		t.Fatalf("position inside fence rejected: %v", err)
	}
}

func TestFence_OutsideIsRejected(t *testing.T) {
	// ~1.1km north
	pos := Position{Latitude: refLat + 0.01, Longitude: refLon, Accuracy: 15}
	err := testFence().Check(pos)
	if !errors.Is(err, ErrOutsideFence) {
		t.Fatalf("want ErrOutsideFence, got %v", err)
	}
}

func TestFence_ImplausibleAccuracyIsFakeGPS(t *testing.T) {
	// dead-center inside the fence, but no real GNSS fix reports 0.3m
	pos := Position{Latitude: refLat, Longitude: refLon, Accuracy: 0.3}
	err := testFence().Check(pos)
	if !errors.Is(err, ErrFakeGPS) {
		t.Fatalf("want ErrFakeGPS even inside fence, got %v", err)
	}
}

func TestFence_BoundaryAccuracyIsAccepted(t *testing.T) {
	pos := Position{Latitude: refLat, Longitude: refLon, Accuracy: 0.5}
	if err := testFence().Check(pos); err != nil {
		t.Fatalf("accuracy exactly at threshold rejected: %v", err)
	}
}
