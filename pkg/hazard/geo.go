package hazard

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// RingCentroid returns the arithmetic mean of the ring vertices as a
// point. The duplicated closing vertex is excluded.
func RingCentroid(ring [][2]float64) Point {
	n := len(ring)
	if n == 0 {
		return Point{}
	}
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	var sumLon, sumLat float64
	for i := 0; i < n; i++ {
		sumLon += ring[i][0]
		sumLat += ring[i][1]
	}
	return Point{Lat: sumLat / float64(n), Lon: sumLon / float64(n)}
}

// RingAreaKm2 approximates the area of a (lon, lat) ring in km² using the
// shoelace formula with a flat-degree conversion. Adequate for small
// flood polygons near the equator.
func RingAreaKm2(ring [][2]float64) float64 {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	if n < 3 {
		return 0
	}
	var area float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += ring[i][0] * ring[j][1]
		area -= ring[j][0] * ring[i][1]
	}
	area = math.Abs(area) / 2
	return area * 111 * 111
}
