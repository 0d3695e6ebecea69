package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/coordtrans/internal/models"
	"golang.org/x/time/rate"
)

// NominatimBaseURL -- public OpenStreetMap Nominatim endpoint.
const NominatimBaseURL = "https://nominatim.openstreetmap.org"

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// This is a free geocoding service with usage limits (1 request/second for fair use).
type NominatimProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the Nominatim API
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter
	// userAgent is required by Nominatim usage policy
	userAgent string
}

// nominatimAddress is the addressdetails block of a Nominatim result.
type nominatimAddress struct {
	Country     string `json:"country"`
	State       string `json:"state"`
	Province    string `json:"province"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	County      string `json:"county"`
	CityDist    string `json:"city_district"`
	District    string `json:"district"`
	Suburb      string `json:"suburb"`
	Quarter     string `json:"quarter"`
	Road        string `json:"road"`
	HouseNumber string `json:"house_number"`
	Postcode    string `json:"postcode"`
}

// nominatimResponse represents the JSON response from Nominatim API.
type nominatimResponse struct {
	Lat         string           `json:"lat"`          // Latitude as string
	Lon         string           `json:"lon"`          // Longitude as string
	DisplayName string           `json:"display_name"` // Full formatted address
	Type        string           `json:"type"`
	Address     nominatimAddress `json:"address"`
	Error       string           `json:"error"`
}

// Common errors for Nominatim provider.
var (
	ErrNominatimEmptyResponse = errors.New("nominatim API returned empty response")
	ErrNominatimInvalidCoords = errors.New("nominatim API returned invalid coordinates")
)

// NewNominatimProvider creates a Nominatim provider on top of a shared HTTP client.
// An empty baseURL selects the public Nominatim API endpoint.
func NewNominatimProvider(client HTTPClient, baseURL string, limiter *rate.Limiter, log *slog.Logger) *NominatimProvider {
	if baseURL == "" {
		baseURL = NominatimBaseURL
	}

	return &NominatimProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		limiter: limiter,
		// User-Agent MUST include valid contact info per Nominatim usage policy:
		// https://operations.osmfoundation.org/policies/nominatim/
		userAgent: "Coordtrans/1.0 (https://github.com/UnknownOlympus/coordtrans)",
	}
}

// Geocode converts an address to geographic coordinates using the Nominatim API.
// It respects Nominatim's usage policy by including a User-Agent header.
//
// Uses a progressive fallback strategy for addresses Nominatim cannot match verbatim:
// 1. Try full address
// 2. Drop the last comma-separated component
// 3. Drop the last two components
// 4. Try the first component only
//
// A non-empty city is appended to every variation.
func (np *NominatimProvider) Geocode(ctx context.Context, address, city string) (*models.GeocodeResult, error) {
	np.log.DebugContext(ctx, "Geocoding using Nominatim", "address", address, "city", city)

	addressVariations := np.generateAddressFallbacks(address)

	for idx, addrVariation := range addressVariations {
		if city != "" && !strings.Contains(addrVariation, city) {
			addrVariation = addrVariation + ", " + city
		}

		// The caller paced the first request, each fallback needs its own slot.
		if idx > 0 {
			if err := np.limiter.Wait(ctx); err != nil {
				return nil, slotError(err)
			}
		}

		result, err := np.geocodeSingleAddress(ctx, addrVariation)
		if err == nil {
			if idx == 0 {
				np.log.DebugContext(ctx, "Geocoded with full address", "address", addrVariation)
			} else {
				np.log.InfoContext(ctx, "Geocoded using fallback address",
					"original", address,
					"fallback", addrVariation,
					"fallback_level", idx)
			}
			return result, nil
		}

		// Anything but an empty result is final.
		if !errors.Is(err, ErrNominatimEmptyResponse) {
			return nil, err
		}

		np.log.DebugContext(ctx, "Address variation returned no results, trying fallback",
			"variation", addrVariation,
			"fallback_level", idx)
	}

	np.log.WarnContext(
		ctx,
		"All address fallbacks exhausted",
		"address",
		address,
		"variations_tried",
		len(addressVariations),
	)
	return nil, &ProviderError{Kind: ErrorKindNotFound, Message: "nominatim found no coordinates for address", Err: errors.Join(ErrNotFound, ErrNominatimEmptyResponse)}
}

// ReverseGeocode resolves coordinates to an address with the /reverse endpoint.
func (np *NominatimProvider) ReverseGeocode(ctx context.Context, coords models.Coordinates) (*models.ReverseResult, error) {
	np.log.DebugContext(ctx, "Reverse geocoding using Nominatim", "location", coords.String())

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	query.Set("format", "json")
	query.Set("addressdetails", "1")

	body, err := np.get(ctx, "/reverse", query)
	if err != nil {
		return nil, err
	}

	var result nominatimResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, &ProviderError{Kind: ErrorKindMalformed, Message: "failed to decode nominatim response", Err: err}
	}

	// Nominatim answers 200 with {"error":"Unable to geocode"} for empty areas.
	if result.Error != "" || result.DisplayName == "" {
		return nil, newNotFound("nominatim found no address for location")
	}

	return &models.ReverseResult{
		FormattedAddress: result.DisplayName,
		AddressComponent: result.Address.component(),
	}, nil
}

// generateAddressFallbacks creates a list of progressively simpler address variations.
func (np *NominatimProvider) generateAddressFallbacks(address string) []string {
	if address == "" {
		return []string{""}
	}

	seen := make(map[string]bool)
	variations := []string{}

	addVariation := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variations = append(variations, v)
		}
	}

	addVariation(address)

	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) > 1 {
		addVariation(strings.Join(parts[:len(parts)-1], ", "))

		const lenComponents = 2
		if len(parts) > lenComponents {
			addVariation(strings.Join(parts[:len(parts)-2], ", "))
		}

		addVariation(parts[0])
	}

	return variations
}

// geocodeSingleAddress performs a single geocoding request without fallback logic.
func (np *NominatimProvider) geocodeSingleAddress(ctx context.Context, address string) (*models.GeocodeResult, error) {
	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")          // Only need the top result
	query.Set("addressdetails", "1") // Include detailed address breakdown

	body, err := np.get(ctx, "/search", query)
	if err != nil {
		return nil, err
	}

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return nil, &ProviderError{Kind: ErrorKindMalformed, Message: "failed to decode nominatim response", Err: err}
	}

	if len(results) == 0 {
		return nil, ErrNominatimEmptyResponse
	}

	top := results[0]
	np.log.DebugContext(ctx, "Nominatim found result", "lat", top.Lat, "lon", top.Lon)

	lat, err := strconv.ParseFloat(top.Lat, 64)
	if err != nil {
		return nil, &ProviderError{
			Kind:    ErrorKindMalformed,
			Message: "invalid latitude: " + top.Lat,
			Err:     ErrNominatimInvalidCoords,
		}
	}
	lon, err := strconv.ParseFloat(top.Lon, 64)
	if err != nil {
		return nil, &ProviderError{
			Kind:    ErrorKindMalformed,
			Message: "invalid longitude: " + top.Lon,
			Err:     ErrNominatimInvalidCoords,
		}
	}

	comp := top.Address.component()

	return &models.GeocodeResult{
		Location:         formatLonLat(lon, lat),
		Longitude:        lon,
		Latitude:         lat,
		FormattedAddress: top.DisplayName,
		Country:          comp.Country,
		Province:         comp.Province,
		City:             comp.City,
		District:         comp.District,
		Street:           comp.Street,
		Number:           comp.Number,
		Adcode:           comp.Adcode,
		Level:            top.Type,
	}, nil
}

// Wait blocks until the limiter grants a request slot.
func (np *NominatimProvider) Wait(ctx context.Context) error {
	return np.limiter.Wait(ctx)
}

// get performs one Nominatim request and returns the raw body.
func (np *NominatimProvider) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	reqURL, err := url.Parse(np.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	reqURL.RawQuery = query.Encode()

	np.log.DebugContext(ctx, "Nominatim request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set required headers per Nominatim usage policy
	req.Header.Set("User-Agent", np.userAgent)
	req.Header.Set("Accept-Language", "zh,en")

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, transportError("nominatim", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("nominatim", err)
	}

	if resp.StatusCode != http.StatusOK {
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, ClassifyHTTPStatus(resp.StatusCode, string(body))
	}

	np.log.DebugContext(ctx, "Nominatim raw response", "body", string(body))

	return body, nil
}

func (a nominatimAddress) component() models.AddressComponent {
	return models.AddressComponent{
		Country:  a.Country,
		Province: firstNonEmpty(a.State, a.Province),
		City:     firstNonEmpty(a.City, a.Town, a.Village, a.County),
		District: firstNonEmpty(a.CityDist, a.District, a.County),
		Township: firstNonEmpty(a.Suburb, a.Quarter),
		Street:   a.Road,
		Number:   a.HouseNumber,
		Adcode:   a.Postcode,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
