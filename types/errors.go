package types

import "fmt"

// FetchErrorKind classifies an upstream fetch failure. Everything except
// FetchAuth is retryable.
type FetchErrorKind int

const (
	FetchTransport FetchErrorKind = iota
	FetchTimeout
	FetchMalformed
	FetchAuth
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTimeout:
		return "timeout"
	case FetchMalformed:
		return "malformed"
	case FetchAuth:
		return "auth"
	default:
		return "transport"
	}
}

type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func NewFetchError(kind FetchErrorKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("price fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Retryable() bool {
	return e.Kind != FetchAuth
}
