package domain

import "math"

const earthRadiusKm = 6371.0

// Coordinate is a geographic point used for proximity-based allocation
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceTo returns the great-circle distance to other in kilometers,
// computed with the haversine formula.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	lat1 := c.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - c.Latitude) * math.Pi / 180
	dLon := (other.Longitude - c.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Warehouse is catalog master data, read-only to this service
type Warehouse struct {
	ID       string     `json:"id"`
	Location Coordinate `json:"location"`
	IsActive bool       `json:"isActive"`
}
