package models

// ResultStatus is the outcome of one provider lookup.
type ResultStatus int

const (
	// StatusFailure means the lookup produced no payload; ErrorReason says why.
	StatusFailure ResultStatus = iota
	// StatusSuccess means the payload is populated.
	StatusSuccess
)

func (s ResultStatus) String() string {
	if s == StatusSuccess {
		return "success"
	}

	return "failure"
}

// FailureKind classifies a failed result so callers can tell "not found" from "request failed".
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureValidation  FailureKind = "validation"
	FailureNotFound    FailureKind = "not_found"
	FailureTimeout     FailureKind = "timeout"
	FailureRateLimited FailureKind = "rate_limited"
	FailureUnavailable FailureKind = "unavailable"
	FailureRejected    FailureKind = "rejected"
	FailureCancelled   FailureKind = "cancelled"
	FailureInternal    FailureKind = "internal"
)

// GeocodeResult is the normalized payload of an address lookup.
type GeocodeResult struct {
	Location         string  `json:"location"` // "lon,lat" as returned by the provider
	Longitude        float64 `json:"-"`
	Latitude         float64 `json:"-"`
	FormattedAddress string  `json:"formatted_address"`
	Country          string  `json:"country,omitempty"`
	Province         string  `json:"province"`
	City             string  `json:"city"`
	District         string  `json:"district"`
	Street           string  `json:"street,omitempty"`
	Number           string  `json:"number,omitempty"`
	Adcode           string  `json:"adcode,omitempty"`
	Level            string  `json:"level,omitempty"`
}

// AddressComponent is the administrative breakdown of a reverse lookup.
type AddressComponent struct {
	Country  string `json:"country,omitempty"`
	Province string `json:"province"`
	City     string `json:"city"`
	District string `json:"district"`
	Township string `json:"township"`
	Towncode string `json:"towncode,omitempty"`
	Street   string `json:"street,omitempty"`
	Number   string `json:"number,omitempty"`
	Adcode   string `json:"adcode,omitempty"`
}

// ReverseResult is the normalized payload of a coordinate lookup.
type ReverseResult struct {
	FormattedAddress string           `json:"formatted_address"`
	AddressComponent AddressComponent `json:"addressComponent"`
}

// ProviderResult carries either a payload or a human-readable failure reason, never both.
type ProviderResult struct {
	Status      ResultStatus
	Geocode     *GeocodeResult
	Reverse     *ReverseResult
	ErrorReason string
	FailureKind FailureKind
	Attempts    int
}

// Success wraps a geocode or reverse payload.
func Success(geo *GeocodeResult, rev *ReverseResult) ProviderResult {
	return ProviderResult{Status: StatusSuccess, Geocode: geo, Reverse: rev}
}

// Failure builds a failed result.
func Failure(kind FailureKind, reason string) ProviderResult {
	return ProviderResult{Status: StatusFailure, FailureKind: kind, ErrorReason: reason}
}

// Payload returns whichever payload is set, for JSON responses.
func (r ProviderResult) Payload() any {
	switch {
	case r.Geocode != nil:
		return r.Geocode
	case r.Reverse != nil:
		return r.Reverse
	default:
		return nil
	}
}
