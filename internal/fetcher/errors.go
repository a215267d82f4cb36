package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnexpectedStatus is wrapped by FetchError when the server answers
	// with a status outside the 2xx range.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrBodyTooLarge is wrapped by FetchError when the response body
	// exceeds the configured size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrInvalidProxyURL is returned when the proxy URL cannot be parsed
	// or has no host.
	ErrInvalidProxyURL = errors.New("invalid proxy URL: expected scheme://host:port")

	// ErrUnsupportedProxyScheme is returned for proxy schemes other than
	// http, https, socks5 and socks5h.
	ErrUnsupportedProxyScheme = errors.New("unsupported proxy scheme: use http, https, socks5 or socks5h")

	// ErrProxyWrongType is returned when the proxy accepts connections but
	// does not answer the SOCKS5 handshake.
	ErrProxyWrongType = errors.New("proxy does not speak SOCKS5")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// can be established.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the proxy check times out.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")
)

// FetchError reports a failed page request. Network failures, timeouts and
// non-success statuses all use this type; StatusCode is zero when no
// response was received.
type FetchError struct {
	// URL is the requested page URL.
	URL string

	// StatusCode is the HTTP status, or 0 for network-level failures.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request failed because a deadline passed.
func (e *FetchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Canceled reports whether the request was abandoned because its context
// was cancelled.
func (e *FetchError) Canceled() bool {
	return errors.Is(e.Err, context.Canceled)
}

// Permanent reports whether repeating the request cannot succeed, either
// because it was cancelled or because the body exceeds the size limit.
func (e *FetchError) Permanent() bool {
	return e.Canceled() || errors.Is(e.Err, ErrBodyTooLarge)
}
