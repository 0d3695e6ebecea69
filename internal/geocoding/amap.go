package geocoding

import (
	"bytes"
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

// AmapBaseURL -- Amap web service API base URL.
const AmapBaseURL = "https://restapi.amap.com/v3"

const (
	amapStatusOK     = "1"
	amapRegeoRadius  = "1000"
	amapRegeoExtents = "all"
)

// AmapProvider implements geocoding using the Amap (Gaode) web service API.
type AmapProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the Amap API
	apiKey  string        // API key with geocoding access
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter
}

// Common errors for Amap provider.
var (
	ErrAmapEmptyAddress  = errors.New("amap provider got empty address")
	ErrAmapInvalidCoords = errors.New("amap API returned invalid coordinates")
)

// amapInfocodes classifies Amap error codes returned with status "0".
// See https://lbs.amap.com/api/webservice/guide/tools/info
var amapInfocodes = map[string]ErrorKind{
	"10001": ErrorKindUnauthorized,  // INVALID_USER_KEY
	"10002": ErrorKindUnauthorized,  // SERVICE_NOT_AVAILABLE
	"10003": ErrorKindQuotaExceeded, // DAILY_QUERY_OVER_LIMIT
	"10004": ErrorKindRateLimit,     // ACCESS_TOO_FREQUENT
	"10005": ErrorKindUnauthorized,  // INVALID_USER_IP
	"10006": ErrorKindUnauthorized,  // INVALID_USER_DOMAIN
	"10007": ErrorKindUnauthorized,  // INVALID_USER_SIGNATURE
	"10008": ErrorKindUnauthorized,  // INVALID_USER_SCODE
	"10009": ErrorKindUnauthorized,  // USERKEY_PLAT_NOMATCH
	"10010": ErrorKindQuotaExceeded, // IP_QUERY_OVER_LIMIT
	"10011": ErrorKindInvalidRequest,
	"10012": ErrorKindUnauthorized,
	"10013": ErrorKindUnauthorized,
	"10014": ErrorKindRateLimit, // QPS_HAS_EXCEEDED_THE_LIMIT
	"10015": ErrorKindTimeout,   // GATEWAY_TIMEOUT
	"10016": ErrorKindUnavailable,
	"10017": ErrorKindUnavailable,
	"10019": ErrorKindRateLimit, // CQPS_HAS_EXCEEDED_THE_LIMIT
	"10020": ErrorKindRateLimit, // CKQPS_HAS_EXCEEDED_THE_LIMIT
	"10021": ErrorKindRateLimit, // CUQPS_HAS_EXCEEDED_THE_LIMIT
	"10026": ErrorKindUnauthorized,
	"10029": ErrorKindQuotaExceeded,
	"10041": ErrorKindUnauthorized,
	"10044": ErrorKindQuotaExceeded,
	"10045": ErrorKindQuotaExceeded,
	"20000": ErrorKindInvalidRequest, // INVALID_PARAMS
	"20001": ErrorKindInvalidRequest, // MISSING_REQUIRED_PARAMS
	"20002": ErrorKindInvalidRequest,
	"20003": ErrorKindUnavailable, // UNKNOWN_ERROR
	"20011": ErrorKindUnauthorized,
	"20012": ErrorKindInvalidRequest,
	"20800": ErrorKindNotFound, // OUT_OF_SERVICE
}

// amapString decodes Amap fields that are a string when set and [] when empty.
type amapString string

func (s *amapString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, string(data) == "null":
		*s = ""
	case data[0] == '[':
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			// Arrays of objects carry nothing we map.
			*s = ""
			return nil
		}
		*s = amapString(strings.Join(parts, ""))
	default:
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = amapString(value)
	}

	return nil
}

type amapEnvelope struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	Infocode string `json:"infocode"`
}

type amapGeocode struct {
	FormattedAddress amapString `json:"formatted_address"`
	Country          amapString `json:"country"`
	Province         amapString `json:"province"`
	City             amapString `json:"city"`
	District         amapString `json:"district"`
	Street           amapString `json:"street"`
	Number           amapString `json:"number"`
	Adcode           amapString `json:"adcode"`
	Location         amapString `json:"location"`
	Level            amapString `json:"level"`
}

type amapGeoResponse struct {
	amapEnvelope
	Geocodes []amapGeocode `json:"geocodes"`
}

type amapRegeoResponse struct {
	amapEnvelope
	Regeocode *struct {
		FormattedAddress amapString `json:"formatted_address"`
		AddressComponent struct {
			Country      amapString `json:"country"`
			Province     amapString `json:"province"`
			City         amapString `json:"city"`
			District     amapString `json:"district"`
			Township     amapString `json:"township"`
			Towncode     amapString `json:"towncode"`
			Adcode       amapString `json:"adcode"`
			StreetNumber struct {
				Street amapString `json:"street"`
				Number amapString `json:"number"`
			} `json:"streetNumber"`
		} `json:"addressComponent"`
	} `json:"regeocode"`
}

// NewAmapProvider creates an Amap provider on top of a shared HTTP client.
func NewAmapProvider(
	client HTTPClient,
	baseURL string,
	apiKey string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *AmapProvider {
	if baseURL == "" {
		baseURL = AmapBaseURL
	}

	return &AmapProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Geocode converts an address into coordinates and administrative fields.
func (ap *AmapProvider) Geocode(ctx context.Context, address, city string) (*models.GeocodeResult, error) {
	if address == "" {
		return nil, &ProviderError{Kind: ErrorKindInvalidRequest, Message: "invalid query", Err: ErrAmapEmptyAddress}
	}

	ap.log.DebugContext(ctx, "Geocoding using Amap", "address", address, "city", city)

	query := url.Values{}
	query.Set("address", address)
	if city != "" {
		query.Set("city", city)
	}

	var resp amapGeoResponse
	if err := ap.get(ctx, "/geocode/geo", query, &resp); err != nil {
		return nil, err
	}

	if len(resp.Geocodes) == 0 {
		return nil, newNotFound("amap found no coordinates for address")
	}

	geo := resp.Geocodes[0]
	lon, lat, err := parseLocation(string(geo.Location))
	if err != nil {
		return nil, &ProviderError{Kind: ErrorKindMalformed, Message: "invalid amap location", Err: err}
	}

	ap.log.DebugContext(ctx, "Amap found result", "address", address, "location", geo.Location)

	return &models.GeocodeResult{
		Location:         string(geo.Location),
		Longitude:        lon,
		Latitude:         lat,
		FormattedAddress: string(geo.FormattedAddress),
		Country:          string(geo.Country),
		Province:         string(geo.Province),
		City:             string(geo.City),
		District:         string(geo.District),
		Street:           string(geo.Street),
		Number:           string(geo.Number),
		Adcode:           string(geo.Adcode),
		Level:            string(geo.Level),
	}, nil
}

// ReverseGeocode converts coordinates into a formatted address with township detail.
func (ap *AmapProvider) ReverseGeocode(ctx context.Context, coords models.Coordinates) (*models.ReverseResult, error) {
	location := fmt.Sprintf("%.6f,%.6f", coords.Longitude, coords.Latitude)
	ap.log.DebugContext(ctx, "Reverse geocoding using Amap", "location", location)

	query := url.Values{}
	query.Set("location", location)
	query.Set("extensions", amapRegeoExtents)
	query.Set("radius", amapRegeoRadius)
	query.Set("roadlevel", "0")

	var resp amapRegeoResponse
	if err := ap.get(ctx, "/geocode/regeo", query, &resp); err != nil {
		return nil, err
	}

	if resp.Regeocode == nil || resp.Regeocode.FormattedAddress == "" {
		return nil, newNotFound("amap found no address for location")
	}

	comp := resp.Regeocode.AddressComponent

	return &models.ReverseResult{
		FormattedAddress: string(resp.Regeocode.FormattedAddress),
		AddressComponent: models.AddressComponent{
			Country:  string(comp.Country),
			Province: string(comp.Province),
			City:     string(comp.City),
			District: string(comp.District),
			Township: string(comp.Township),
			Towncode: string(comp.Towncode),
			Street:   string(comp.StreetNumber.Street),
			Number:   string(comp.StreetNumber.Number),
			Adcode:   string(comp.Adcode),
		},
	}, nil
}

// Wait blocks until the limiter grants a request slot.
func (ap *AmapProvider) Wait(ctx context.Context) error {
	return ap.limiter.Wait(ctx)
}

// get performs one Amap request and decodes the response into target.
func (ap *AmapProvider) get(ctx context.Context, path string, query url.Values, target any) error {
	reqURL, err := url.Parse(ap.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse base URL: %w", err)
	}

	query.Set("key", ap.apiKey)
	query.Set("output", "JSON")
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ap.client.Do(req)
	if err != nil {
		return transportError("amap", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError("amap", err)
	}

	if resp.StatusCode != http.StatusOK {
		ap.log.ErrorContext(ctx, "Amap API error", "status", resp.StatusCode, "body", string(body))
		return ClassifyHTTPStatus(resp.StatusCode, string(body))
	}

	ap.log.DebugContext(ctx, "Amap raw response", "path", path, "body", string(body))

	var envelope amapEnvelope
	if err = json.Unmarshal(body, &envelope); err != nil {
		return &ProviderError{Kind: ErrorKindMalformed, Message: "failed to decode amap response", Err: err}
	}

	if envelope.Status != amapStatusOK {
		kind, ok := amapInfocodes[envelope.Infocode]
		if !ok {
			kind = ErrorKindUnknown
			if strings.HasPrefix(envelope.Infocode, "3") {
				// 3xxxx are engine-side failures.
				kind = ErrorKindUnavailable
			}
		}
		return &ProviderError{
			Kind:    kind,
			Message: fmt.Sprintf("amap API error %s: %s", envelope.Infocode, envelope.Info),
		}
	}

	if err = json.Unmarshal(body, target); err != nil {
		return &ProviderError{Kind: ErrorKindMalformed, Message: "failed to decode amap response", Err: err}
	}

	return nil
}

// parseLocation splits a "lon,lat" string.
func parseLocation(location string) (float64, float64, error) {
	const parts = 2

	fields := strings.Split(location, ",")
	if len(fields) != parts {
		return 0, 0, fmt.Errorf("%w: %q", ErrAmapInvalidCoords, location)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid longitude %q", ErrAmapInvalidCoords, fields[0])
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid latitude %q", ErrAmapInvalidCoords, fields[1])
	}

	return lon, lat, nil
}
