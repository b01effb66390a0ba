package geo

import (
	"math"
	"testing"

	"github.com/courtsidehq/courtside/internal/models"
)

func TestDistanceMiles(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tolerance              float64
	}{
		{
			name: "zero distance",
			lat1: 35.7321, lon1: -78.8503,
			lat2: 35.7321, lon2: -78.8503,
			want: 0, tolerance: 1e-9,
		},
		{
			name: "third of a mile north",
			lat1: 35.7321, lon1: -78.8503,
			lat2: 35.73644, lon2: -78.8503,
			want: 0.30, tolerance: 0.01,
		},
		{
			name: "NYC to LA",
			lat1: 40.7128, lon1: -74.0060,
			lat2: 34.0522, lon2: -118.2437,
			want: 2445, tolerance: 15,
		},
		{
			name: "symmetric",
			lat1: 35.73644, lon1: -78.8503,
			lat2: 35.7321, lon2: -78.8503,
			want: 0.30, tolerance: 0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMiles(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("DistanceMiles() = %v, want %v ± %v", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestDistanceMilesSymmetry(t *testing.T) {
	pairs := [][4]float64{
		{35.7321, -78.8503, 35.78, -78.90},
		{0, 0, 1, 1},
		{-33.8688, 151.2093, 51.5074, -0.1278},
	}
	for _, p := range pairs {
		ab := DistanceMiles(p[0], p[1], p[2], p[3])
		ba := DistanceMiles(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("distance not symmetric: %v vs %v", ab, ba)
		}
	}
}

func TestValidateFix(t *testing.T) {
	tests := []struct {
		name    string
		fix     models.GpsFix
		wantErr error
	}{
		{"valid", models.GpsFix{Latitude: 35.7, Longitude: -78.8, AccuracyMeters: 10}, nil},
		{"missing", models.GpsFix{}, ErrMissingFix},
		{"latitude out of range", models.GpsFix{Latitude: 95, Longitude: -78.8}, ErrInvalidFix},
		{"longitude out of range", models.GpsFix{Latitude: 35.7, Longitude: 181}, ErrInvalidFix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFix(tt.fix)
			if err != tt.wantErr {
				t.Errorf("ValidateFix() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
