// Package geo provides the small amount of spherical geometry the
// adapters and verifier need for distance-bounded filtering.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for all distance
// calculations (kilometres).
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points using
// the haversine formula on a spherical Earth. Invalid coordinates
// propagate NaN; validation belongs to the caller.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}
