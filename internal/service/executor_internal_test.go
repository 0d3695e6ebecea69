package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UnknownOlympus/coordtrans/internal/geocoding"
	"github.com/UnknownOlympus/coordtrans/internal/metrics"
	"github.com/UnknownOlympus/coordtrans/internal/models"
	"github.com/UnknownOlympus/coordtrans/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, provider geocoding.Provider, workers int) (*Executor, *metrics.Metrics) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	m := metrics.NewMetrics(prometheus.NewRegistry())
	client := geocoding.NewClient(provider, "mock", geocoding.ClientConfig{
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
	}, m, logger)

	return NewExecutor(logger, client, m, workers), m
}

func geocodeRows(addresses ...string) []models.Row {
	rows := make([]models.Row, len(addresses))
	for idx, address := range addresses {
		query := models.NewGeocodeQuery(address, "")
		rows[idx] = models.Row{Index: idx, Values: []string{address}, Query: &query}
	}

	return rows
}

// echo answers every geocode with the address it was asked for.
func echo(_ context.Context, address, _ string) (*models.GeocodeResult, error) {
	return &models.GeocodeResult{Location: "116.48,39.99", FormattedAddress: address}, nil
}

func TestExecutor_Run(t *testing.T) {
	ctx := testContext(t)

	t.Run("output order follows input order", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		provider.On("Geocode", mock.Anything, mock.Anything, "").
			Return(func(ctx context.Context, address, city string) (*models.GeocodeResult, error) {
				if address == "row-3" {
					time.Sleep(50 * time.Millisecond)
				}
				return echo(ctx, address, city)
			}).Times(5)
		executor, _ := newTestExecutor(t, provider, 2)

		outcome := executor.Run(ctx, models.KindGeocode, geocodeRows("row-0", "row-1", "row-2", "row-3", "row-4"), nil)

		require.Len(t, outcome, 5)
		for idx, item := range outcome {
			assert.Equal(t, idx, item.Row.Index)
			require.Equal(t, models.StatusSuccess, item.Result.Status)
			assert.Equal(t, fmt.Sprintf("row-%d", idx), item.Result.Geocode.FormattedAddress)
		}
	})

	t.Run("a failed row does not affect its neighbours", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		provider.On("Geocode", mock.Anything, "nowhere", "").
			Return(nil, &geocoding.ProviderError{Kind: geocoding.ErrorKindNotFound, Message: "no match"}).Once()
		provider.On("Geocode", mock.Anything, mock.Anything, "").Return(echo).Twice()
		executor, m := newTestExecutor(t, provider, 3)

		outcome := executor.Run(ctx, models.KindGeocode, geocodeRows("before", "nowhere", "after"), nil)

		require.Len(t, outcome, 3)
		assert.Equal(t, models.StatusSuccess, outcome[0].Result.Status)
		assert.Equal(t, models.StatusFailure, outcome[1].Result.Status)
		assert.Equal(t, models.FailureNotFound, outcome[1].Result.FailureKind)
		assert.Equal(t, "no result found", outcome[1].Result.ErrorReason)
		assert.Equal(t, models.StatusSuccess, outcome[2].Result.Status)
		assert.Equal(t, 1, outcome.Failed())
		assert.InDelta(t, 2, testutil.ToFloat64(m.RowsProcessed.WithLabelValues("geocode", "success")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(m.RowsProcessed.WithLabelValues("geocode", "failure")), 0)
	})

	t.Run("invalid rows never reach the provider", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		executor, _ := newTestExecutor(t, provider, 2)
		rows := []models.Row{
			{Index: 0, Values: []string{"200,39.99"}, ValidationError: "longitude must be between -180 and 180"},
			{Index: 1, Values: []string{""}, ValidationError: `empty location in column "location"`},
		}

		outcome := executor.Run(ctx, models.KindReverseGeocode, rows, nil)

		require.Len(t, outcome, 2)
		assert.Equal(t, models.FailureValidation, outcome[0].Result.FailureKind)
		assert.Equal(t, "longitude must be between -180 and 180", outcome[0].Result.ErrorReason)
		assert.Equal(t, models.FailureValidation, outcome[1].Result.FailureKind)
		provider.AssertNotCalled(t, "ReverseGeocode", mock.Anything, mock.Anything)
	})

	t.Run("in-flight calls never exceed the worker limit", func(t *testing.T) {
		var inFlight, peak atomic.Int32
		provider := mocks.NewProvider(t)
		provider.On("Geocode", mock.Anything, mock.Anything, "").
			Return(func(ctx context.Context, address, city string) (*models.GeocodeResult, error) {
				current := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					seen := peak.Load()
					if current <= seen || peak.CompareAndSwap(seen, current) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				return echo(ctx, address, city)
			}).Times(20)
		executor, _ := newTestExecutor(t, provider, 3)

		addresses := make([]string, 20)
		for idx := range addresses {
			addresses[idx] = fmt.Sprintf("addr-%d", idx)
		}
		outcome := executor.Run(ctx, models.KindGeocode, geocodeRows(addresses...), nil)

		assert.Len(t, outcome, 20)
		assert.Zero(t, outcome.Failed())
		assert.LessOrEqual(t, peak.Load(), int32(3))
		assert.Positive(t, peak.Load())
	})

	t.Run("cancelled context marks pending rows", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		executor, _ := newTestExecutor(t, provider, 2)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		outcome := executor.Run(cancelled, models.KindGeocode, geocodeRows("a", "b", "c"), nil)

		require.Len(t, outcome, 3)
		for _, item := range outcome {
			assert.Equal(t, models.FailureCancelled, item.Result.FailureKind)
		}
		provider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("progress is reported per row", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		provider.On("Geocode", mock.Anything, mock.Anything, "").Return(echo).Times(3)
		executor, _ := newTestExecutor(t, provider, 2)
		rows := append(geocodeRows("a", "b", "c"), models.Row{Index: 3, ValidationError: "bad row"})
		progress := make(chan Progress, len(rows))

		executor.Run(ctx, models.KindGeocode, rows, progress)
		close(progress)

		seen := make(map[int]bool)
		maxDone := 0
		for event := range progress {
			assert.Equal(t, 4, event.Total)
			seen[event.Index] = true
			maxDone = max(maxDone, event.Done)
		}
		assert.Len(t, seen, 4)
		assert.Equal(t, 4, maxDone)
	})

	t.Run("progress never blocks", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		provider.On("Geocode", mock.Anything, mock.Anything, "").Return(echo).Twice()
		executor, _ := newTestExecutor(t, provider, 1)

		outcome := executor.Run(ctx, models.KindGeocode, geocodeRows("a", "b"), make(chan Progress))

		assert.Len(t, outcome, 2)
	})

	t.Run("empty batch", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		executor, _ := newTestExecutor(t, provider, 2)

		outcome := executor.Run(ctx, models.KindGeocode, nil, nil)

		assert.NotNil(t, outcome)
		assert.Empty(t, outcome)
	})
}
