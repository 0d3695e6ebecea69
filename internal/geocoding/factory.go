package geocoding

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeAmap represents the Amap (Gaode) web service API.
	ProviderTypeAmap ProviderType = "amap"
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeNominatim represents OpenStreetMap Nominatim geocoding provider.
	ProviderTypeNominatim ProviderType = "nominatim"
)

// nominatimDefaultRate -- fair use limit of the public Nominatim instance.
const nominatimDefaultRate = 1

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type       ProviderType // Type of provider to create
	APIKey     string       // API key (Amap and Google)
	BaseURL    string       // Overrides the provider endpoint when set
	RateLimit  int          // Rate limit for requests per second, 0 means unlimited
	HTTPClient HTTPClient   // Shared HTTP client, http.DefaultClient when nil
	Logger     *slog.Logger // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
// It applies the Factory pattern to decouple provider instantiation from business logic.
//
// Supported provider types:
// - "amap": Amap web service API (requires API key)
// - "google": Google Maps Geocoding API (requires API key)
// - "nominatim": OpenStreetMap Nominatim API (free, no API key required)
//
// Returns an error if the provider type is unsupported or if provider creation fails.
func NewProvider(config ProviderConfig) (Provider, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	switch config.Type {
	case ProviderTypeAmap:
		return newAmapProvider(config)
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	case ProviderTypeNominatim:
		return newNominatimProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// newAmapProvider creates an Amap geocoding provider.
func newAmapProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Amap provider")
	}

	return NewAmapProvider(
		config.HTTPClient,
		config.BaseURL,
		config.APIKey,
		newLimiter(config.RateLimit),
		config.Logger,
	), nil
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}

	if httpClient, ok := config.HTTPClient.(*http.Client); ok {
		clientOpts = append(clientOpts, maps.WithHTTPClient(httpClient))
	}
	if config.BaseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(config.BaseURL))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, newLimiter(config.RateLimit), config.Logger), nil
}

// newNominatimProvider creates a Nominatim geocoding provider.
func newNominatimProvider(config ProviderConfig) (Provider, error) {
	if config.RateLimit == 0 {
		config.RateLimit = nominatimDefaultRate
		config.Logger.Warn("Rate limit for Nominatim API not set, set a default value", "value", config.RateLimit)
	}

	return NewNominatimProvider(
		config.HTTPClient,
		config.BaseURL,
		newLimiter(config.RateLimit),
		config.Logger,
	), nil
}

// newLimiter returns a limiter allowing perSecond requests, unlimited when perSecond <= 0.
func newLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}
