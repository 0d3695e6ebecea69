package geocoding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/coordtrans/internal/metrics"
	"github.com/UnknownOlympus/coordtrans/internal/models"
)

const (
	// DefaultTimeout bounds a single provider attempt.
	DefaultTimeout = 10 * time.Second
	// DefaultRetryDelay is the pause before the only retry.
	DefaultRetryDelay = 500 * time.Millisecond

	maxAttempts = 2
)

// ClientConfig tunes the provider client.
type ClientConfig struct {
	Timeout    time.Duration
	RetryDelay time.Duration
}

// Client turns provider calls into ProviderResult values.
// It is safe for concurrent use when the underlying Provider is.
type Client struct {
	provider     Provider
	providerName string
	cfg          ClientConfig
	metrics      *metrics.Metrics
	log          *slog.Logger
}

// NewClient wraps provider with a per-attempt timeout and a single retry on transient failures.
// metrics may be nil.
func NewClient(provider Provider, providerName string, cfg ClientConfig, m *metrics.Metrics, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}

	return &Client{
		provider:     provider,
		providerName: providerName,
		cfg:          cfg,
		metrics:      m,
		log:          log,
	}
}

// ProviderName returns the label used for metrics and logs.
func (c *Client) ProviderName() string {
	return c.providerName
}

// Fetch runs one query against the provider. Failures are returned as data, never as an error.
func (c *Client) Fetch(ctx context.Context, q models.Query) models.ProviderResult {
	var (
		result models.ProviderResult
		err    error
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = c.wait(ctx); err != nil {
			c.log.DebugContext(ctx, "No request slot before the deadline",
				"provider", c.providerName,
				"operation", q.Kind.String(),
				"attempt", attempt,
				"error", err)

			if ctx.Err() != nil {
				return cancelled(attempt - 1)
			}

			failure := models.Failure(models.FailureTimeout, "timed out waiting for a request slot")
			failure.Attempts = attempt - 1

			return failure
		}

		result, err = c.attempt(ctx, q)
		result.Attempts = attempt
		if err == nil {
			return result
		}

		kind := KindOf(err)
		c.log.DebugContext(ctx, "Provider attempt failed",
			"provider", c.providerName,
			"operation", q.Kind.String(),
			"attempt", attempt,
			"kind", kind.String(),
			"error", err)

		if ctx.Err() != nil {
			return cancelled(attempt)
		}

		if !kind.Transient() || attempt == maxAttempts {
			break
		}

		if c.metrics != nil {
			c.metrics.ProviderRetries.Inc()
		}

		select {
		case <-ctx.Done():
			return cancelled(attempt)
		case <-time.After(c.cfg.RetryDelay):
		}
	}

	kind := KindOf(err)
	if c.metrics != nil {
		c.metrics.ProviderErrors.WithLabelValues(c.providerName, kind.String()).Inc()
	}

	failure := models.Failure(kind.FailureKind(), reason(kind, err))
	failure.Attempts = result.Attempts

	return failure
}

// wait takes a request slot from a throttled provider. It runs on the caller's
// context, ahead of the attempt deadline.
func (c *Client) wait(ctx context.Context) error {
	throttled, ok := c.provider.(Throttled)
	if !ok {
		return nil
	}

	if err := throttled.Wait(ctx); err != nil {
		return slotError(err)
	}

	return nil
}

func (c *Client) attempt(ctx context.Context, q models.Query) (models.ProviderResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if c.metrics != nil {
		c.metrics.InFlightRequests.Inc()
		defer c.metrics.InFlightRequests.Dec()
	}

	startTime := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RequestSeconds.WithLabelValues(c.providerName, q.Kind.String()).
				Observe(time.Since(startTime).Seconds())
		}
	}()

	switch q.Kind {
	case models.KindGeocode:
		geo, err := c.provider.Geocode(attemptCtx, q.Address, q.City)
		if err != nil {
			return models.ProviderResult{}, attemptError(attemptCtx, err)
		}
		return models.Success(geo, nil), nil
	case models.KindReverseGeocode:
		rev, err := c.provider.ReverseGeocode(attemptCtx, q.Coordinates)
		if err != nil {
			return models.ProviderResult{}, attemptError(attemptCtx, err)
		}
		return models.Success(nil, rev), nil
	default:
		return models.ProviderResult{}, &ProviderError{Kind: ErrorKindInvalidRequest, Message: "unknown query kind"}
	}
}

// attemptError reclassifies failures caused by the attempt deadline.
func attemptError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && KindOf(err) != ErrorKindTimeout {
		return &ProviderError{Kind: ErrorKindTimeout, Message: "provider request timed out", Err: err}
	}

	return err
}

func cancelled(attempts int) models.ProviderResult {
	res := models.Failure(models.FailureCancelled, "request cancelled")
	res.Attempts = attempts

	return res
}

// reason renders a failure for end users.
func reason(kind ErrorKind, err error) string {
	switch kind {
	case ErrorKindNotFound:
		return "no result found"
	case ErrorKindTimeout:
		return "provider request timed out"
	case ErrorKindRateLimit:
		return "provider rate limit exceeded"
	case ErrorKindQuotaExceeded:
		return "provider quota exceeded"
	case ErrorKindNetwork:
		return "provider unreachable"
	case ErrorKindUnavailable:
		return "provider unavailable"
	case ErrorKindUnauthorized:
		return "provider rejected credentials"
	default:
		var provErr *ProviderError
		if errors.As(err, &provErr) {
			return provErr.Message
		}
		return err.Error()
	}
}
