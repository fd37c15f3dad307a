// Package geo provides great-circle distance primitives on a spherical earth.
package geo

import "math"

// EarthRadiusKm is the mean WGS-84 radius used for haversine distances.
const EarthRadiusKm = 6371.0

// Point is a WGS-84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p is a finite coordinate inside the WGS-84 bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// ValidPtr reports whether p is non-nil and valid.
func ValidPtr(p *Point) bool { return p != nil && p.Valid() }

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within reports whether a and b are strictly closer than km.
func Within(a, b Point, km float64) bool { return Haversine(a, b) < km }

// ClosestIndex returns the index of the point in path nearest to p, or -1
// when path is empty.
func ClosestIndex(path []Point, p Point) int {
	best := -1
	bestDist := math.Inf(1)
	for i, q := range path {
		if d := Haversine(p, q); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Interpolate returns the points from a (exclusive) to b (inclusive) spaced at
// most stepKm apart along the straight segment between them.
func Interpolate(a, b Point, stepKm float64) []Point {
	d := Haversine(a, b)
	if stepKm <= 0 || d <= stepKm {
		return []Point{b}
	}
	n := int(math.Ceil(d / stepKm))
	out := make([]Point, 0, n)
	for i := 1; i <= n; i++ {
		f := float64(i) / float64(n)
		out = append(out, Point{
			Lat: a.Lat + (b.Lat-a.Lat)*f,
			Lng: a.Lng + (b.Lng-a.Lng)*f,
		})
	}
	return out
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
