// Package validation turns raw user input into provider queries.
// It never performs network I/O.
package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/UnknownOlympus/coordtrans/internal/apperr"
	"github.com/UnknownOlympus/coordtrans/internal/models"
	"github.com/go-playground/validator/v10"
)

const minAddressLength = 2

// unsafeChars are stripped from free-text input before it reaches the provider.
var unsafeChars = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", ";", "")

// Limits bounds free-text input.
type Limits struct {
	MaxAddressLength int
	MaxCityLength    int
}

// Validator wraps the go-playground validator with the input limits of the service.
type Validator struct {
	v      *validator.Validate
	limits Limits
}

// New creates a new Validator instance.
func New(limits Limits) *Validator {
	return &Validator{
		v:      validator.New(),
		limits: limits,
	}
}

// Row validates one data row against mapping. The returned row carries either a
// Query or a ValidationError, never both.
func (val *Validator) Row(index int, values []string, mapping ColumnMapping) models.Row {
	row := models.Row{
		Index:  index,
		Values: values,
		Fields: make(map[string]string, len(mapping.Header)),
	}
	for idx, name := range mapping.Header {
		if idx < len(values) {
			row.Fields[name] = values[idx]
		} else {
			row.Fields[name] = ""
		}
	}

	var (
		query models.Query
		err   error
	)

	switch mapping.Kind {
	case models.KindGeocode:
		query, err = val.geocodeRow(values, mapping)
	case models.KindReverseGeocode:
		query, err = val.reverseRow(values, mapping)
	default:
		err = errors.New("unsupported query kind")
	}

	if err != nil {
		row.ValidationError = err.Error()
		return row
	}

	row.Query = &query

	return row
}

func (val *Validator) geocodeRow(values []string, mapping ColumnMapping) (models.Query, error) {
	address, err := cell(values, mapping, mapping.Address, "address")
	if err != nil {
		return models.Query{}, err
	}

	var city string
	if mapping.City != NoColumn && mapping.City < len(values) {
		city = truncate(strings.TrimSpace(values[mapping.City]), val.limits.MaxCityLength)
	}

	return models.NewGeocodeQuery(truncate(address, val.limits.MaxAddressLength), city), nil
}

func (val *Validator) reverseRow(values []string, mapping ColumnMapping) (models.Query, error) {
	if mapping.Location != NoColumn {
		location, err := cell(values, mapping, mapping.Location, "location")
		if err != nil {
			return models.Query{}, err
		}

		coords, err := val.ParseLocation(location)
		if err != nil {
			return models.Query{}, err
		}

		return models.NewReverseQuery(coords), nil
	}

	lon, err := cell(values, mapping, mapping.Longitude, "longitude")
	if err != nil {
		return models.Query{}, err
	}
	lat, err := cell(values, mapping, mapping.Latitude, "latitude")
	if err != nil {
		return models.Query{}, err
	}

	coords, err := val.coordinates(lon, lat)
	if err != nil {
		return models.Query{}, err
	}

	return models.NewReverseQuery(coords), nil
}

// GeocodeQuery checks a single address lookup. Violations are InvalidInput errors.
func (val *Validator) GeocodeQuery(address, city string) (models.Query, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.Query{}, apperr.InvalidInput("address must not be empty")
	}

	tag := fmt.Sprintf("min=%d,max=%d", minAddressLength, val.limits.MaxAddressLength)
	if err := val.v.Var(address, tag); err != nil {
		if utf8.RuneCountInString(address) < minAddressLength {
			return models.Query{}, apperr.InvalidInput(
				fmt.Sprintf("address must be at least %d characters", minAddressLength))
		}
		return models.Query{}, apperr.InvalidInput(
			fmt.Sprintf("address must not exceed %d characters", val.limits.MaxAddressLength))
	}

	city = strings.TrimSpace(city)
	if city != "" {
		if err := val.v.Var(city, fmt.Sprintf("max=%d", val.limits.MaxCityLength)); err != nil {
			return models.Query{}, apperr.InvalidInput(
				fmt.Sprintf("city must not exceed %d characters", val.limits.MaxCityLength))
		}
	}

	address = unsafeChars.Replace(address)
	if address == "" {
		return models.Query{}, apperr.InvalidInput("address must not be empty")
	}

	return models.NewGeocodeQuery(address, unsafeChars.Replace(city)), nil
}

// ReverseQuery checks a single "lon,lat" lookup. Violations are InvalidInput errors.
func (val *Validator) ReverseQuery(location string) (models.Query, error) {
	coords, err := val.ParseLocation(location)
	if err != nil {
		return models.Query{}, apperr.InvalidInput(err.Error())
	}

	return models.NewReverseQuery(coords), nil
}

// ParseLocation parses "lon,lat" and checks both ranges.
func (val *Validator) ParseLocation(location string) (models.Coordinates, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return models.Coordinates{}, errors.New("location must not be empty")
	}

	// Full-width commas are common in Chinese spreadsheets.
	location = strings.ReplaceAll(location, "，", ",")

	var parts []string
	for _, part := range strings.Split(location, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}

	const pair = 2
	if len(parts) != pair {
		return models.Coordinates{}, errors.New("location must be in 'longitude,latitude' format")
	}

	return val.coordinates(parts[0], parts[1])
}

func (val *Validator) coordinates(lonRaw, latRaw string) (models.Coordinates, error) {
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if lonErr != nil || latErr != nil || math.IsNaN(lon) || math.IsNaN(lat) {
		return models.Coordinates{}, errors.New("longitude and latitude must be numbers")
	}

	coords := models.Coordinates{Longitude: lon, Latitude: lat}
	if err := val.v.Struct(coords); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			switch fieldErrs[0].Field() {
			case "Longitude":
				return models.Coordinates{}, errors.New("longitude must be between -180 and 180")
			case "Latitude":
				return models.Coordinates{}, errors.New("latitude must be between -90 and 90")
			}
		}
		return models.Coordinates{}, fmt.Errorf("invalid coordinates: %w", err)
	}

	return coords, nil
}

// cell returns the trimmed value of column idx or an error naming the column.
func cell(values []string, mapping ColumnMapping, idx int, field string) (string, error) {
	name := mapping.Name(idx)
	if idx == NoColumn || (idx >= len(values) && idx >= len(mapping.Header)) {
		return "", fmt.Errorf("missing %s column %q", field, name)
	}

	// Spreadsheet readers drop trailing empty cells.
	var value string
	if idx < len(values) {
		value = strings.TrimSpace(values[idx])
	}
	if value == "" {
		return "", fmt.Errorf("empty %s in column %q", field, name)
	}

	return value, nil
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	return string([]rune(s)[:limit])
}
