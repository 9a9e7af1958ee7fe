package geo

import (
	"math"
	"testing"
)

func TestDistanceKmKnownPairs(t *testing.T) {
	cases := []struct {
		name     string
		a, b     Point
		wantKm   float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         Point{Latitude: 51.5129, Longitude: -0.0334},
			b:         Point{Latitude: 51.5129, Longitude: -0.0334},
			wantKm:    0,
			tolerance: 0.0001,
		},
		{
			name:      "london to paris",
			a:         Point{Latitude: 51.5074, Longitude: -0.1278},
			b:         Point{Latitude: 48.8566, Longitude: 2.3522},
			wantKm:    343.5,
			tolerance: 1.0,
		},
		{
			name:      "short hop across canary wharf",
			a:         Point{Latitude: 51.5129, Longitude: -0.0334},
			b:         Point{Latitude: 51.5054, Longitude: -0.0235},
			wantKm:    1.07,
			tolerance: 0.05,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceKm(tc.a, tc.b)
			if math.Abs(got-tc.wantKm) > tc.tolerance {
				t.Fatalf("DistanceKm = %f, want %f ± %f", got, tc.wantKm, tc.tolerance)
			}
		})
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := Point{Latitude: 40.7128, Longitude: -74.0060}
	b := Point{Latitude: 34.0522, Longitude: -118.2437}

	if d1, d2 := DistanceKm(a, b), DistanceKm(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestWithinMile(t *testing.T) {
	origin := Point{Latitude: 51.5129, Longitude: -0.0334}

	// Roughly 0.7 km north.
	near := Point{Latitude: 51.5192, Longitude: -0.0334}
	if !WithinMile(origin, near) {
		t.Fatalf("expected %v to be within a mile of %v", near, origin)
	}

	// Roughly 2.2 km north.
	far := Point{Latitude: 51.5327, Longitude: -0.0334}
	if WithinMile(origin, far) {
		t.Fatalf("expected %v to be outside a mile of %v", far, origin)
	}
}

func TestRoundKm(t *testing.T) {
	if got := RoundKm(1.2345); got != 1.2 {
		t.Fatalf("RoundKm(1.2345) = %f, want 1.2", got)
	}
	if got := RoundKm(0.96); got != 1.0 {
		t.Fatalf("RoundKm(0.96) = %f, want 1.0", got)
	}
}
