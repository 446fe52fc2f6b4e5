package geo

import (
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle math
const EarthRadiusKm = 6371.0

// KmPerMile converts statute miles to kilometers
const KmPerMile = 1.609344

// DistanceKm calculates the distance between two points using the Haversine formula
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	deltaLat := toRadians(lat2 - lat1)
	deltaLon := toRadians(lon2 - lon1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Destination returns the point reached by travelling distanceKm from
// (lat, lon) along the initial bearing (degrees clockwise from north).
func Destination(lat, lon, distanceKm, bearingDeg float64) (float64, float64) {
	angular := distanceKm / EarthRadiusKm
	bearing := toRadians(bearingDeg)
	lat1 := toRadians(lat)
	lon1 := toRadians(lon)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2),
	)

	// normalize to [-180, 180)
	lonDeg := math.Mod(toDegrees(lon2)+540, 360) - 180
	return toDegrees(lat2), lonDeg
}

// Round rounds v to the given number of decimal places
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func toDegrees(radians float64) float64 {
	return radians * 180 / math.Pi
}
