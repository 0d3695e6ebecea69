package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/UnknownOlympus/coordtrans/internal/models"
)

// ErrorKind classifies provider failures.
type ErrorKind int

const (
	// ErrorKindUnknown is an unclassified failure.
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindNotFound means the provider answered but had no match.
	ErrorKindNotFound
	// ErrorKindRateLimit means the provider asked us to slow down.
	ErrorKindRateLimit
	// ErrorKindQuotaExceeded means a daily or per-IP quota is used up.
	ErrorKindQuotaExceeded
	// ErrorKindTimeout means the call did not finish within its deadline.
	ErrorKindTimeout
	// ErrorKindNetwork means the provider could not be reached.
	ErrorKindNetwork
	// ErrorKindUnavailable means the provider reported a server-side problem.
	ErrorKindUnavailable
	// ErrorKindInvalidRequest means the provider rejected our parameters.
	ErrorKindInvalidRequest
	// ErrorKindUnauthorized means the API key was rejected.
	ErrorKindUnauthorized
	// ErrorKindMalformed means the response could not be decoded.
	ErrorKindMalformed
)

var errorKindNames = map[ErrorKind]string{
	ErrorKindUnknown:        "unknown",
	ErrorKindNotFound:       "not_found",
	ErrorKindRateLimit:      "rate_limit",
	ErrorKindQuotaExceeded:  "quota_exceeded",
	ErrorKindTimeout:        "timeout",
	ErrorKindNetwork:        "network",
	ErrorKindUnavailable:    "unavailable",
	ErrorKindInvalidRequest: "invalid_request",
	ErrorKindUnauthorized:   "unauthorized",
	ErrorKindMalformed:      "malformed",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Transient reports whether a retry may succeed.
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrorKindRateLimit, ErrorKindTimeout, ErrorKindNetwork, ErrorKindUnavailable:
		return true
	default:
		return false
	}
}

// FailureKind maps the provider classification onto the result model.
func (k ErrorKind) FailureKind() models.FailureKind {
	switch k {
	case ErrorKindNotFound:
		return models.FailureNotFound
	case ErrorKindTimeout:
		return models.FailureTimeout
	case ErrorKindRateLimit, ErrorKindQuotaExceeded:
		return models.FailureRateLimited
	case ErrorKindNetwork, ErrorKindUnavailable, ErrorKindMalformed:
		return models.FailureUnavailable
	default:
		return models.FailureRejected
	}
}

// ErrNotFound is wrapped by every ErrorKindNotFound error.
var ErrNotFound = errors.New("no result found")

// ProviderError represents a classified failure of a mapping provider.
type ProviderError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newNotFound(message string) *ProviderError {
	return &ProviderError{Kind: ErrorKindNotFound, Message: message, Err: ErrNotFound}
}

// KindOf classifies any error returned by a provider.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorKindTimeout
		}
		return ErrorKindNetwork
	}

	return kindFromMessage(err.Error())
}

// kindFromMessage detects common provider error strings.
func kindFromMessage(msg string) ErrorKind {
	msg = strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "over_query_limit"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"):
		return ErrorKindRateLimit
	case strings.Contains(msg, "over_daily_limit"), strings.Contains(msg, "quota exceeded"):
		return ErrorKindQuotaExceeded
	case strings.Contains(msg, "request_denied"):
		return ErrorKindUnauthorized
	case strings.Contains(msg, "invalid_request"):
		return ErrorKindInvalidRequest
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return ErrorKindTimeout
	case strings.Contains(msg, "unknown_error"):
		return ErrorKindUnavailable
	default:
		return ErrorKindUnknown
	}
}

// slotError reports a request that never left the process because no limiter slot was granted in time.
func slotError(err error) *ProviderError {
	return &ProviderError{Kind: ErrorKindTimeout, Message: "timed out waiting for a request slot", Err: err}
}

// transportError wraps a failed HTTP round trip.
func transportError(provider string, err error) *ProviderError {
	kind := ErrorKindNetwork
	if KindOf(err) == ErrorKindTimeout {
		kind = ErrorKindTimeout
	}

	return &ProviderError{
		Kind:    kind,
		Message: fmt.Sprintf("failed to execute %s request", provider),
		Err:     err,
	}
}

// ClassifyHTTPStatus classifies a non-200 provider response.
func ClassifyHTTPStatus(statusCode int, body string) *ProviderError {
	kind := ErrorKindUnknown

	switch {
	case statusCode == http.StatusTooManyRequests:
		kind = ErrorKindRateLimit
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		kind = ErrorKindUnauthorized
	case statusCode == http.StatusBadRequest:
		kind = ErrorKindInvalidRequest
	case statusCode == http.StatusNotFound:
		kind = ErrorKindNotFound
	case statusCode == http.StatusGatewayTimeout, statusCode == http.StatusRequestTimeout:
		kind = ErrorKindTimeout
	case statusCode >= http.StatusInternalServerError:
		kind = ErrorKindUnavailable
	}

	msg := fmt.Sprintf("provider returned status %d", statusCode)
	if body = strings.TrimSpace(body); body != "" {
		const maxBody = 200
		if len(body) > maxBody {
			body = body[:maxBody]
		}
		msg += ": " + body
	}

	provErr := &ProviderError{Kind: kind, Message: msg}
	if kind == ErrorKindNotFound {
		provErr.Err = ErrNotFound
	}

	return provErr
}
