package geo

import "math"

const (
	earthRadiusKm = 6371.0

	// MileKm is one statute mile expressed in kilometers, the radius used
	// for territory claims and nearby-creator counts.
	MileKm = 1.609344
)

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// DistanceKm computes the great-circle distance between two points using
// the haversine formula. Returns kilometers.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// WithinMile reports whether two points lie within one mile of each other.
func WithinMile(a, b Point) bool {
	return DistanceKm(a, b) <= MileKm
}

// RoundKm rounds a distance to one decimal for display.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}
