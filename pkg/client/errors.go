package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a page fetch failure.
type Kind string

const (
	// KindTransport covers connection errors, timeouts and unreadable bodies.
	KindTransport Kind = "transport"

	// KindBadStatus covers non-2xx responses and 2xx responses whose reason
	// phrase is not the standard one for the code.
	KindBadStatus Kind = "bad_status"

	// KindDecode covers response bodies that are not a JSON array of tweets.
	KindDecode Kind = "decode"
)

// Sentinels matched by FetchError.Is, one per Kind.
var (
	ErrTransport = errors.New("tweets api transport error")
	ErrBadStatus = errors.New("tweets api bad status")
	ErrDecode    = errors.New("tweets api decode error")
)

// FetchError is returned by FetchPage for every failed page request.
type FetchError struct {
	Kind       Kind
	StatusCode int    // set for KindBadStatus
	Reason     string // reason phrase for KindBadStatus, e.g. "Not Found"
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch e.Kind {
	case KindBadStatus:
		return fmt.Sprintf("tweets api bad status (status %d): %s", e.StatusCode, e.Reason)
	case KindDecode:
		return fmt.Sprintf("tweets api decode error: %v", e.Err)
	default:
		return fmt.Sprintf("tweets api transport error: %v", e.Err)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrBadStatus:
		return e.Kind == KindBadStatus
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}

// Temporary reports whether repeating the same request could succeed:
// transport failures, 429 and 5xx responses.
func (e *FetchError) Temporary() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindBadStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// IsTemporary reports whether err carries a temporary FetchError.
func IsTemporary(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Temporary()
}

func transportError(err error) *FetchError {
	return &FetchError{Kind: KindTransport, Err: err}
}

func decodeError(err error) *FetchError {
	return &FetchError{Kind: KindDecode, Err: err}
}

func badStatusError(resp *http.Response) *FetchError {
	return &FetchError{
		Kind:       KindBadStatus,
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
	}
}

// reasonPhrase extracts "Not Found" from a Status of "404 Not Found".
func reasonPhrase(resp *http.Response) string {
	prefix := fmt.Sprintf("%d ", resp.StatusCode)
	if len(resp.Status) > len(prefix) && resp.Status[:len(prefix)] == prefix {
		return resp.Status[len(prefix):]
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
