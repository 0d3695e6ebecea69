package validation

import (
	"strings"

	"github.com/UnknownOlympus/coordtrans/internal/apperr"
	"github.com/UnknownOlympus/coordtrans/internal/models"
)

// NoColumn marks a column that is not present in the mapping.
const NoColumn = -1

var (
	addressKeywords   = []string{"address", "地址"}
	cityKeywords      = []string{"city", "城市"}
	longitudeKeywords = []string{"lon", "lng", "经度"}
	latitudeKeywords  = []string{"lat", "纬度"}
	locationKeywords  = []string{"location", "经纬度", "坐标", "lnglat", "lonlat"}
)

// ColumnMapping tells the Row Validator where the input fields live in a row.
// Indexes are zero-based, NoColumn when absent.
type ColumnMapping struct {
	Kind      models.QueryKind
	Header    []string
	Address   int
	City      int
	Longitude int
	Latitude  int
	Location  int // combined "lon,lat" column
}

// Name returns the header of column idx for error messages.
func (m ColumnMapping) Name(idx int) string {
	if idx >= 0 && idx < len(m.Header) {
		return m.Header[idx]
	}

	return ""
}

// DetectColumns picks the input columns for kind from a header row.
//
// Geocoding uses the first header mentioning an address (else the first column)
// and an optional city column. Reverse geocoding looks for separate longitude and
// latitude headers, then a combined location column, then the first two columns,
// and finally treats a single column as combined "lon,lat" values.
func DetectColumns(header []string, kind models.QueryKind) (ColumnMapping, error) {
	mapping := ColumnMapping{
		Kind:      kind,
		Header:    header,
		Address:   NoColumn,
		City:      NoColumn,
		Longitude: NoColumn,
		Latitude:  NoColumn,
		Location:  NoColumn,
	}

	if len(header) == 0 {
		return mapping, apperr.Validation("file has no columns").WithOp("detect columns")
	}

	switch kind {
	case models.KindGeocode:
		mapping.Address = findColumn(header, addressKeywords, nil)
		if mapping.Address == NoColumn {
			mapping.Address = 0
		}
		mapping.City = findColumn(header, cityKeywords, func(idx int) bool { return idx == mapping.Address })
	case models.KindReverseGeocode:
		location := findColumn(header, locationKeywords, nil)
		isLocation := func(idx int) bool { return idx == location }

		lon := findColumn(header, longitudeKeywords, isLocation)
		lat := findColumn(header, latitudeKeywords, func(idx int) bool { return idx == location || idx == lon })

		const pair = 2
		switch {
		case lon != NoColumn && lat != NoColumn:
			mapping.Longitude, mapping.Latitude = lon, lat
		case location != NoColumn:
			mapping.Location = location
		case len(header) >= pair:
			mapping.Longitude, mapping.Latitude = 0, 1
		default:
			mapping.Location = 0
		}
	default:
		return mapping, apperr.Validation("unsupported query kind").WithOp("detect columns")
	}

	return mapping, nil
}

// findColumn returns the first column whose header contains one of keywords.
func findColumn(header []string, keywords []string, skip func(int) bool) int {
	for idx, name := range header {
		if skip != nil && skip(idx) {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(name))
		for _, keyword := range keywords {
			if strings.Contains(normalized, keyword) {
				return idx
			}
		}
	}

	return NoColumn
}
