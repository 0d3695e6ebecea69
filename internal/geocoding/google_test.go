package geocoding_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/coordtrans/internal/geocoding"
	"github.com/UnknownOlympus/coordtrans/internal/models"
	"github.com/UnknownOlympus/coordtrans/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGeocode(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProvider(mockClient, unlimited(), slog.Default())
	ctx := testContext(t)

	t.Run("api returns error", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := provider.Geocode(ctx, address, "")

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, geocoding.ErrorKindUnavailable, geocoding.KindOf(err))
	})

	t.Run("api reports over query limit", func(t *testing.T) {
		address := "busy place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).
			Return(nil, errors.New("maps: OVER_QUERY_LIMIT - You have exceeded your rate-limit")).Once()

		_, err := provider.Geocode(ctx, address, "")

		require.Error(t, err)
		assert.Equal(t, geocoding.ErrorKindRateLimit, geocoding.KindOf(err))
	})

	t.Run("api return empty response", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, nil).Once()

		res, err := provider.Geocode(ctx, address, "")

		require.Nil(t, res)
		require.ErrorIs(t, err, geocoding.ErrNotFound)
	})

	t.Run("successfull geocoding", func(t *testing.T) {
		address := "1600 Amphitheatre Parkway"
		req := &maps.GeocodingRequest{
			Address:    address,
			Components: map[maps.Component]string{maps.ComponentLocality: "Mountain View"},
		}
		mockReponse := []maps.GeocodingResult{
			{
				FormattedAddress: "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA",
				Geometry:         maps.AddressGeometry{Location: maps.LatLng{Lat: 37.42, Lng: -122.08}},
				AddressComponents: []maps.AddressComponent{
					{LongName: "California", Types: []string{"administrative_area_level_1", "political"}},
					{LongName: "Mountain View", Types: []string{"locality", "political"}},
					{LongName: "Santa Clara County", Types: []string{"administrative_area_level_2", "political"}},
				},
			},
		}

		mockClient.On("Geocode", ctx, req).Return(mockReponse, nil).Once()

		res, err := provider.Geocode(ctx, address, "Mountain View")

		require.NoError(t, err)
		require.NotNil(t, res)
		require.InEpsilon(t, 37.42, res.Latitude, 0.01)
		require.InEpsilon(t, -122.08, res.Longitude, 0.01)
		assert.Equal(t, "-122.080000,37.420000", res.Location)
		assert.Equal(t, "California", res.Province)
		assert.Equal(t, "Mountain View", res.City)
	})
}

func TestReverseGeocode(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProvider(mockClient, unlimited(), slog.Default())
	ctx := testContext(t)
	coords := models.Coordinates{Longitude: -122.08, Latitude: 37.42}
	req := &maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: 37.42, Lng: -122.08}}

	t.Run("successful reverse geocoding", func(t *testing.T) {
		mockClient.On("ReverseGeocode", ctx, req).Return([]maps.GeocodingResult{
			{
				FormattedAddress: "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA",
				AddressComponents: []maps.AddressComponent{
					{LongName: "1600", Types: []string{"street_number"}},
					{LongName: "Amphitheatre Parkway", Types: []string{"route"}},
					{LongName: "Mountain View", Types: []string{"locality", "political"}},
				},
			},
		}, nil).Once()

		res, err := provider.ReverseGeocode(ctx, coords)

		require.NoError(t, err)
		assert.Equal(t, "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA", res.FormattedAddress)
		assert.Equal(t, "Amphitheatre Parkway", res.AddressComponent.Street)
		assert.Equal(t, "1600", res.AddressComponent.Number)
		assert.Equal(t, "Mountain View", res.AddressComponent.City)
	})

	t.Run("zero results", func(t *testing.T) {
		mockClient.On("ReverseGeocode", ctx, req).Return([]maps.GeocodingResult{}, nil).Once()

		res, err := provider.ReverseGeocode(ctx, coords)

		require.Nil(t, res)
		require.ErrorIs(t, err, geocoding.ErrNotFound)
	})
}
