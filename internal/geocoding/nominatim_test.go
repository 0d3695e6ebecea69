package geocoding_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/UnknownOlympus/coordtrans/internal/geocoding"
	"github.com/UnknownOlympus/coordtrans/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// mockHTTPClient is a mock implementation of HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func unlimited() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

func TestNominatimProvider_Geocode(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("successful geocoding", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "GET", req.Method)
				assert.Equal(t, "nominatim.openstreetmap.org", req.URL.Host)
				assert.Equal(t, "/search", req.URL.Path)
				assert.Equal(t, "1600 Amphitheatre Parkway, Mountain View, CA", req.URL.Query().Get("q"))
				assert.Equal(t, "json", req.URL.Query().Get("format"))
				assert.Equal(t, "1", req.URL.Query().Get("limit"))
				assert.Equal(
					t,
					"Coordtrans/1.0 (https://github.com/UnknownOlympus/coordtrans)",
					req.Header.Get("User-Agent"),
				)

				return jsonResponse(http.StatusOK, `[{"lat":"37.4224764","lon":"-122.0842499",
					"display_name":"Google Building 41, Mountain View",
					"address":{"state":"California","city":"Mountain View","county":"Santa Clara County",
					"road":"Amphitheatre Parkway","house_number":"1600"}}]`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		res, err := provider.Geocode(ctx, "1600 Amphitheatre Parkway, Mountain View, CA", "")

		require.NoError(t, err)
		require.NotNil(t, res)
		assert.InEpsilon(t, 37.4224764, res.Latitude, 0.0001)
		assert.InEpsilon(t, -122.0842499, res.Longitude, 0.0001)
		assert.Equal(t, "-122.084250,37.422476", res.Location)
		assert.Equal(t, "California", res.Province)
		assert.Equal(t, "Mountain View", res.City)
		assert.Equal(t, "Santa Clara County", res.District)
		assert.Equal(t, "Amphitheatre Parkway", res.Street)
	})

	t.Run("city is appended to the query", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "Wangfujing Street, Beijing", req.URL.Query().Get("q"))
				return jsonResponse(http.StatusOK, `[{"lat":"39.91","lon":"116.41"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		_, err := provider.Geocode(ctx, "Wangfujing Street", "Beijing")

		require.NoError(t, err)
	})

	t.Run("falls back to shorter address", func(t *testing.T) {
		var queries []string
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				q := req.URL.Query().Get("q")
				queries = append(queries, q)
				if q == "Village, Field street" {
					return jsonResponse(http.StatusOK, `[{"lat":"49.1","lon":"24.2"}]`), nil
				}
				return jsonResponse(http.StatusOK, `[]`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		res, err := provider.Geocode(ctx, "Village, Field street, 12", "")

		require.NoError(t, err)
		assert.InEpsilon(t, 49.1, res.Latitude, 0.0001)
		assert.Equal(t, []string{"Village, Field street, 12", "Village, Field street"}, queries)
	})

	t.Run("empty response from API", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[]`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		res, err := provider.Geocode(ctx, "invalid address", "")

		require.Error(t, err)
		require.Nil(t, res)
		require.ErrorIs(t, err, geocoding.ErrNominatimEmptyResponse)
		require.ErrorIs(t, err, geocoding.ErrNotFound)
		assert.Equal(t, geocoding.ErrorKindNotFound, geocoding.KindOf(err))
	})

	t.Run("HTTP error status", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusTooManyRequests, `{"error":"Rate limit exceeded"}`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		res, err := provider.Geocode(ctx, "some address", "")

		require.Error(t, err)
		require.Nil(t, res)
		assert.Contains(t, err.Error(), "provider returned status 429")
		assert.Equal(t, geocoding.ErrorKindRateLimit, geocoding.KindOf(err))
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `invalid json`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		res, err := provider.Geocode(ctx, "some address", "")

		require.Error(t, err)
		require.Nil(t, res)
		assert.Contains(t, err.Error(), "failed to decode nominatim response")
		assert.Equal(t, geocoding.ErrorKindMalformed, geocoding.KindOf(err))
	})

	t.Run("invalid latitude in response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[{"lat":"invalid","lon":"-122.0842499"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		res, err := provider.Geocode(ctx, "some address", "")

		require.Error(t, err)
		require.Nil(t, res)
		require.ErrorIs(t, err, geocoding.ErrNominatimInvalidCoords)
		assert.Contains(t, err.Error(), "invalid latitude")
	})

	t.Run("invalid longitude in response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[{"lat":"37.4224764","lon":"invalid"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		res, err := provider.Geocode(ctx, "some address", "")

		require.Error(t, err)
		require.Nil(t, res)
		require.ErrorIs(t, err, geocoding.ErrNominatimInvalidCoords)
		assert.Contains(t, err.Error(), "invalid longitude")
	})

	t.Run("network error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, assert.AnError
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		res, err := provider.Geocode(ctx, "some address", "")

		require.Error(t, err)
		require.Nil(t, res)
		require.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, geocoding.ErrorKindNetwork, geocoding.KindOf(err))
	})
}

func TestNominatimProvider_ReverseGeocode(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	coords := models.Coordinates{Longitude: 116.480881, Latitude: 39.989410}

	t.Run("successful reverse geocoding", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "/reverse", req.URL.Path)
				assert.Equal(t, "116.480881", req.URL.Query().Get("lon"))
				assert.Equal(t, "39.98941", req.URL.Query().Get("lat"))
				return jsonResponse(http.StatusOK, `{"display_name":"Futong East Street, Chaoyang, Beijing",
					"address":{"state":"Beijing","city":"Beijing","city_district":"Chaoyang",
					"suburb":"Wangjing","road":"Futong East Street"}}`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		res, err := provider.ReverseGeocode(ctx, coords)

		require.NoError(t, err)
		assert.Equal(t, "Futong East Street, Chaoyang, Beijing", res.FormattedAddress)
		assert.Equal(t, "Chaoyang", res.AddressComponent.District)
		assert.Equal(t, "Wangjing", res.AddressComponent.Township)
		assert.Equal(t, "Futong East Street", res.AddressComponent.Street)
	})

	t.Run("unable to geocode", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"error":"Unable to geocode"}`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "", unlimited(), logger)
		res, err := provider.ReverseGeocode(ctx, coords)

		require.Nil(t, res)
		require.ErrorIs(t, err, geocoding.ErrNotFound)
	})

	t.Run("custom base URL", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "osm.internal", req.URL.Host)
				assert.Equal(t, "/nominatim/reverse", req.URL.Path)
				return jsonResponse(http.StatusOK, `{"display_name":"somewhere"}`), nil
			},
		}

		provider := geocoding.NewNominatimProvider(mockClient, "http://osm.internal/nominatim/", unlimited(), logger)
		_, err := provider.ReverseGeocode(ctx, coords)

		require.NoError(t, err)
	})
}
