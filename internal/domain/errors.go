package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork         = errors.New("network error")
	ErrTimeout         = errors.New("timeout")
	ErrRateLimited     = errors.New("rate limited")
	ErrHTTPStatus      = errors.New("unexpected http status")
	ErrUnexpectedShape = errors.New("unexpected document shape")
	ErrExhausted       = errors.New("retries exhausted")
)

type FetchErrorKind int

const (
	KindNetwork FetchErrorKind = iota
	KindTimeout
	KindHTTPStatus
)

func (k FetchErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http status"
	default:
		return "unknown"
	}
}

// FetchError is a classified failure of a single fetch.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int // Set for KindHTTPStatus
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("HTTP error: %d fetching %s", e.StatusCode, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error fetching %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s error fetching %s", e.Kind, e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the taxonomy sentinels against the error kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrHTTPStatus:
		return e.Kind == KindHTTPStatus
	case ErrRateLimited:
		return e.Kind == KindHTTPStatus && e.StatusCode == 429
	}
	return false
}

// StatusError builds the FetchError for a completed response with a non-2xx status.
func StatusError(url string, status int) *FetchError {
	return &FetchError{Kind: KindHTTPStatus, StatusCode: status, URL: url}
}

// ShapeError marks an extraction failure where the document lacks the expected structure.
func ShapeError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnexpectedShape, fmt.Sprintf(format, args...))
}
