package ingest

import "errors"

// Kind classifies why an ingestion failed
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindUpstreamUnavailable
	KindUpstreamMalformed
	KindStorageFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindUpstreamMalformed:
		return "upstream_malformed"
	case KindStorageFailure:
		return "storage_failure"
	default:
		return "unknown"
	}
}

// ErrMisaligned is returned when a present hourly series does not have one
// value per timestamp
var ErrMisaligned = errors.New("hourly series length does not match time axis")

// Error is the failure returned by Service.Load
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf reports the Kind carried by err, or KindUnknown when err is not an *Error
func KindOf(err error) Kind {
	var ingestErr *Error
	if errors.As(err, &ingestErr) {
		return ingestErr.Kind
	}
	return KindUnknown
}
