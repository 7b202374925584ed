package qualify

import "math"

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Hub is a named city center that anchors the geographic rule. The rule
// started life as "state = TX" and was generalized to radius-around-hubs
// when the business expanded past a single state.
type Hub struct {
	Name string `json:"name"`
	Point
}

const earthRadiusMiles = 3958.8

// distanceMiles returns the great-circle distance between two points.
func distanceMiles(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}
