package geocoding

import (
	"context"
	"net/http"

	"github.com/UnknownOlympus/coordtrans/internal/models"
)

// Provider is an interface that defines forward and reverse lookups against a mapping API.
// Implementations return *ProviderError values so callers can tell transient failures
// from rejections and empty results.
type Provider interface {
	Geocode(ctx context.Context, address, city string) (*models.GeocodeResult, error)
	ReverseGeocode(ctx context.Context, coords models.Coordinates) (*models.ReverseResult, error)
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Throttled is implemented by providers that pace their own requests.
// Client waits for a slot before the attempt deadline starts, so queueing
// behind the limiter never eats into the request timeout.
type Throttled interface {
	Wait(ctx context.Context) error
}
