package models

import (
	"strconv"
)

// Coordinates represents a geographical point defined by its longitude and latitude.
type Coordinates struct {
	Longitude float64 `validate:"gte=-180,lte=180"` // Longitude of the geographical point.
	Latitude  float64 `validate:"gte=-90,lte=90"`   // Latitude of the geographical point.
}

// String renders the point in the "lon,lat" form used by mapping providers.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', -1, 64)
}
