// Package export merges batch results back into the uploaded table.
package export

import (
	"strconv"
	"strings"

	"github.com/UnknownOlympus/coordtrans/internal/models"
	"github.com/UnknownOlympus/coordtrans/internal/spreadsheet"
)

// ErrorColumn holds the failure reason of a row, empty on success.
const ErrorColumn = "api_error"

var (
	geocodeColumns = []string{
		"api_longitude", "api_latitude", "api_formatted_address",
		"api_province", "api_city", "api_district", ErrorColumn,
	}
	reverseColumns = []string{
		"api_address", "api_province", "api_city",
		"api_district", "api_township", "api_street", ErrorColumn,
	}
)

// Columns returns the result columns appended for kind, in order.
func Columns(kind models.QueryKind) []string {
	if kind == models.KindReverseGeocode {
		return append([]string(nil), reverseColumns...)
	}

	return append([]string(nil), geocodeColumns...)
}

// Filename returns the download name of an export.
func Filename(kind models.QueryKind) string {
	if kind == models.KindReverseGeocode {
		return "processed_regeocoding.xlsx"
	}

	return "processed_geocoding.xlsx"
}

// Table merges every row of outcome with its flattened result.
// Input columns that share a name with a result column are replaced, so
// a processed file can be fed back in without growing duplicate columns.
func Table(header []string, outcome models.BatchOutcome, kind models.QueryKind) *spreadsheet.Table {
	columns := Columns(kind)
	resultSet := make(map[string]struct{}, len(columns))
	for _, name := range columns {
		resultSet[name] = struct{}{}
	}

	kept := make([]int, 0, len(header))
	outHeader := make([]string, 0, len(header)+len(columns))
	for idx, name := range header {
		if _, clash := resultSet[name]; clash {
			continue
		}
		kept = append(kept, idx)
		outHeader = append(outHeader, name)
	}
	outHeader = append(outHeader, columns...)

	table := &spreadsheet.Table{Header: outHeader, Rows: make([][]string, 0, len(outcome))}
	for _, item := range outcome {
		row := make([]string, 0, len(outHeader))
		for _, idx := range kept {
			if idx < len(item.Row.Values) {
				row = append(row, item.Row.Values[idx])
			} else {
				row = append(row, "")
			}
		}
		row = append(row, flatten(item.Result, kind)...)
		table.Rows = append(table.Rows, row)
	}

	return table
}

// Export renders outcome as an xlsx workbook.
func Export(header []string, outcome models.BatchOutcome, kind models.QueryKind) ([]byte, error) {
	return spreadsheet.Write(Table(header, outcome, kind))
}

// flatten returns the result cells of one row in Columns(kind) order.
func flatten(result models.ProviderResult, kind models.QueryKind) []string {
	width := len(geocodeColumns)
	if kind == models.KindReverseGeocode {
		width = len(reverseColumns)
	}
	cells := make([]string, width)

	if result.Status != models.StatusSuccess {
		cells[width-1] = result.ErrorReason
		if cells[width-1] == "" {
			cells[width-1] = "unknown error"
		}
		return cells
	}

	switch {
	case kind == models.KindGeocode && result.Geocode != nil:
		geo := result.Geocode
		lon, lat := splitLocation(geo)
		copy(cells, []string{lon, lat, geo.FormattedAddress, geo.Province, geo.City, geo.District})
	case kind == models.KindReverseGeocode && result.Reverse != nil:
		comp := result.Reverse.AddressComponent
		copy(cells, []string{
			result.Reverse.FormattedAddress, comp.Province, comp.City,
			comp.District, comp.Township, comp.Street,
		})
	default:
		cells[width-1] = "result does not match query kind"
	}

	return cells
}

// splitLocation keeps the provider's own digits when it returned a "lon,lat" string.
func splitLocation(geo *models.GeocodeResult) (string, string) {
	if lon, lat, ok := strings.Cut(geo.Location, ","); ok {
		return strings.TrimSpace(lon), strings.TrimSpace(lat)
	}

	return strconv.FormatFloat(geo.Longitude, 'f', -1, 64), strconv.FormatFloat(geo.Latitude, 'f', -1, 64)
}
