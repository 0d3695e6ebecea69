package models

// QueryKind tells which direction a lookup goes.
type QueryKind int

const (
	// KindGeocode converts an address into coordinates.
	KindGeocode QueryKind = iota
	// KindReverseGeocode converts coordinates into an address.
	KindReverseGeocode
)

func (k QueryKind) String() string {
	switch k {
	case KindGeocode:
		return "geocode"
	case KindReverseGeocode:
		return "regeocode"
	default:
		return "unknown"
	}
}

// Query is a validated lookup ready to be sent to a provider.
// Address and City are set for KindGeocode, Coordinates for KindReverseGeocode.
type Query struct {
	Kind        QueryKind
	Address     string
	City        string
	Coordinates Coordinates
}

// NewGeocodeQuery builds an address lookup.
func NewGeocodeQuery(address, city string) Query {
	return Query{Kind: KindGeocode, Address: address, City: city}
}

// NewReverseQuery builds a coordinate lookup.
func NewReverseQuery(coords Coordinates) Query {
	return Query{Kind: KindReverseGeocode, Coordinates: coords}
}
