package geospatial

import "math"

// earthRadiusM is the IUGG mean Earth radius.
const earthRadiusM = 6_371_008.8

// Haversine returns the great-circle distance in meters between two points
// given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRad(lat1), toRad(lat2)
	dPhi := phi2 - phi1
	dLambda := toRad(lon2 - lon1)

	h := hav(dPhi) + math.Cos(phi1)*math.Cos(phi2)*hav(dLambda)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(math.Min(1, h)))
}

// DegreeBox returns the box spanning delta degrees on each side of a point.
// The result is not clamped, so a center within delta of a pole or the
// antimeridian yields out-of-range edges.
func DegreeBox(lat, lon, delta float64) (minLon, minLat, maxLon, maxLat float64) {
	return lon - delta, lat - delta, lon + delta, lat + delta
}

func hav(theta float64) float64 {
	s := math.Sin(theta / 2)
	return s * s
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
