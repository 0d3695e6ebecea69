package geocoding

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/UnknownOlympus/coordtrans/internal/models"
	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services.
type GoogleProvider struct {
	client  GoogleAPIClient // client is the Google Maps API client
	limiter *rate.Limiter   // limiter paces requests to the API
	log     *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewGoogleProvider initializes a new GoogleProvider with the given client, limiter and logger.
func NewGoogleProvider(client GoogleAPIClient, limiter *rate.Limiter, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, limiter: limiter, log: log}
}

// Wait blocks until the limiter grants a request slot.
func (gp *GoogleProvider) Wait(ctx context.Context) error {
	return gp.limiter.Wait(ctx)
}

// Geocode takes a context and an address string as input, and returns the geographical coordinates
// and administrative fields of the provided address using the Google Maps Geocoding API.
// A non-empty city restricts the lookup to that locality.
func (gp *GoogleProvider) Geocode(ctx context.Context, address, city string) (*models.GeocodeResult, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", address, "city", city)

	req := maps.GeocodingRequest{Address: address}
	if city != "" {
		req.Components = map[maps.Component]string{maps.ComponentLocality: city}
	}

	geocodeResponse, err := gp.client.Geocode(ctx, &req)
	if err != nil {
		return nil, classifyGoogleError(err)
	}

	if len(geocodeResponse) == 0 {
		return nil, newNotFound("google maps found no coordinates for address")
	}

	result := geocodeResponse[0]
	coords := result.Geometry.Location
	comp := googleComponents(result.AddressComponents)

	return &models.GeocodeResult{
		Location:         formatLonLat(coords.Lng, coords.Lat),
		Longitude:        coords.Lng,
		Latitude:         coords.Lat,
		FormattedAddress: result.FormattedAddress,
		Country:          comp.Country,
		Province:         comp.Province,
		City:             comp.City,
		District:         comp.District,
		Street:           comp.Street,
		Number:           comp.Number,
		Level:            result.Geometry.LocationType,
	}, nil
}

// ReverseGeocode resolves coordinates to the most specific Google Maps address.
func (gp *GoogleProvider) ReverseGeocode(ctx context.Context, coords models.Coordinates) (*models.ReverseResult, error) {
	gp.log.DebugContext(ctx, "Reverse geocoding using Google Maps", "location", coords.String())

	req := maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: coords.Latitude, Lng: coords.Longitude}}

	response, err := gp.client.ReverseGeocode(ctx, &req)
	if err != nil {
		return nil, classifyGoogleError(err)
	}

	if len(response) == 0 || response[0].FormattedAddress == "" {
		return nil, newNotFound("google maps found no address for location")
	}

	return &models.ReverseResult{
		FormattedAddress: response[0].FormattedAddress,
		AddressComponent: googleComponents(response[0].AddressComponents),
	}, nil
}

// googleComponents maps Google address component types onto the administrative hierarchy.
func googleComponents(components []maps.AddressComponent) models.AddressComponent {
	var out models.AddressComponent

	for _, component := range components {
		for _, kind := range component.Types {
			switch kind {
			case "country":
				out.Country = component.LongName
			case "administrative_area_level_1":
				out.Province = component.LongName
			case "locality":
				out.City = component.LongName
			case "administrative_area_level_2":
				if out.City == "" {
					out.City = component.LongName
				}
			case "sublocality_level_1", "administrative_area_level_3":
				if out.District == "" {
					out.District = component.LongName
				}
			case "sublocality_level_2", "neighborhood":
				if out.Township == "" {
					out.Township = component.LongName
				}
			case "route":
				out.Street = component.LongName
			case "street_number":
				out.Number = component.LongName
			case "postal_code":
				out.Adcode = component.LongName
			}
		}
	}

	return out
}

func classifyGoogleError(err error) *ProviderError {
	kind := KindOf(err)
	if kind == ErrorKindUnknown {
		kind = ErrorKindUnavailable
	}

	return &ProviderError{Kind: kind, Message: "google maps geocoding failed", Err: err}
}

func formatLonLat(lon, lat float64) string {
	return strconv.FormatFloat(lon, 'f', 6, 64) + "," + strconv.FormatFloat(lat, 'f', 6, 64)
}
