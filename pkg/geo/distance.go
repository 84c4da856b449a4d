package geo

import "math"

const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// EarthRadiusMeters is the mean Earth radius
	EarthRadiusMeters = 6371e3

	// MetersToMiles is the factor applied to haversine meters before rounding
	MetersToMiles = 0.00054
)

// Distance returns the haversine great-circle distance between two points,
// in whole miles. Inputs are decimal degrees and are not range checked.
//
// Formula: https://www.movable-type.co.uk/scripts/latlong.html
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * DegreesToRadians
	phi2 := lat2 * DegreesToRadians
	dPhi := (lat2 - lat1) * DegreesToRadians
	dLambda := (lon2 - lon1) * DegreesToRadians

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Round(EarthRadiusMeters * c * MetersToMiles)
}

// Nearest returns the point closest to (lat, lon) and its distance in miles.
// Ties go to the earlier point. ok is false when points is empty.
func Nearest(points []Point, lat, lon float64) (p Point, miles float64, ok bool) {
	for i, candidate := range points {
		d := Distance(lat, lon, candidate.Latitude, candidate.Longitude)
		if i == 0 || d < miles {
			p, miles = candidate, d
		}
	}
	return p, miles, len(points) > 0
}

// Bearing returns the initial great-circle bearing from (lat1, lon1) to
// (lat2, lon2) in degrees, normalized to [0, 360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * DegreesToRadians
	phi2 := lat2 * DegreesToRadians
	dLambda := (lon2 - lon1) * DegreesToRadians

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	bearing := math.Atan2(y, x) / DegreesToRadians

	if bearing < 0 {
		bearing += 360
	}
	return bearing
}
