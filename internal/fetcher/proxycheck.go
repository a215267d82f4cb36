package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"time"
)

// proxyCheckTimeout bounds the whole preflight check.
const proxyCheckTimeout = 10 * time.Second

// SOCKS5 greeting constants (RFC 1928).
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthPassword = 0x02
)

// ProxyStatus is the result of a proxy preflight check.
type ProxyStatus int

const (
	// ProxyStatusOK means the proxy is reachable and, for SOCKS5, completed
	// the method negotiation.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType means the proxy accepted the connection but did
	// not answer like a SOCKS5 server.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect means the proxy address refused the connection.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout means the check did not finish in time.
	ProxyStatusTimeout
)

// String returns a human-readable description of the status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns the sentinel error for s, or nil for ProxyStatusOK.
func (s ProxyStatus) Err() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyWrongType
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}

// CheckProxy verifies that the proxy named by proxyURL is usable before a
// crawl starts. HTTP proxies only need to accept a TCP connection. SOCKS5
// proxies must also complete the method negotiation for the auth method
// implied by the URL: username/password when userinfo is present, none
// otherwise. No request is sent through the proxy.
func CheckProxy(ctx context.Context, proxyURL string) ProxyStatus {
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		return ProxyStatusCannotConnect
	}

	ctx, cancel := context.WithTimeout(ctx, proxyCheckTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", proxyHostPort(u))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return ProxyStatusOK
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return ProxyStatusCannotConnect
		}
	}

	method := byte(socks5AuthNone)
	if u.User != nil {
		method = socks5AuthPassword
	}
	if _, err := conn.Write([]byte{socks5Version, 0x01, method}); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if resp[0] != socks5Version || resp[1] != method {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// proxyHostPort returns host:port for u, filling in the scheme's default port.
func proxyHostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	port := "1080"
	switch u.Scheme {
	case "http":
		port = "80"
	case "https":
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
