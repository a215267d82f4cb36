package fetcher

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

// DefaultMaxBodySize is the default limit on bytes read from a response body.
const DefaultMaxBodySize int64 = 10 * 1024 * 1024

// Fetcher retrieves page bodies for one catalog source.
// A Fetcher is safe for concurrent use when its http.Client is.
type Fetcher struct {
	// client performs the requests. Shared across sources so the
	// connection pool and cookie jar are reused.
	client *http.Client

	// userAgent is sent as the User-Agent header when non-empty.
	userAgent string

	// headers are extra request headers, set after the defaults.
	headers map[string]string

	// cookie is sent verbatim as the Cookie header when non-empty.
	cookie string

	// maxBodySize caps the bytes read from each response.
	maxBodySize int64

	// limiter paces requests. It may be shared by several Fetchers to
	// enforce a global request rate. Nil means unlimited.
	limiter *rate.Limiter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithHeaders sets extra request headers. The map is copied.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = maps.Clone(headers)
	}
}

// WithCookie sets the Cookie header sent with every request.
func WithCookie(cookie string) Option {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithMaxBodySize sets the response body limit. Values <= 0 are ignored.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithLimiter sets the rate limiter consulted before each request.
func WithLimiter(l *rate.Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// New creates a Fetcher using client. A nil client is replaced by
// http.DefaultClient.
func New(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		client:      client,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewLimiter returns a limiter allowing requestsPerSecond requests with a
// burst of one, or nil when requestsPerSecond is not positive.
func NewLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}

// Fetch issues a single GET for pageURL and returns the body as text.
//
// Every failure is returned as a *FetchError: request construction,
// transport errors, timeouts, context cancellation and statuses outside
// 2xx. Fetch performs no retries.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", &FetchError{URL: pageURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return "", &FetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status),
		}
	}

	body, err := readBody(resp.Body, f.maxBodySize)
	if err != nil {
		return "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}
	return body, nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}
}

// readBody reads at most limit bytes from r and decodes them as UTF-8.
// Invalid sequences are replaced with U+FFFD; the declared charset of the
// response is ignored. A body longer than limit yields ErrBodyTooLarge.
func readBody(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, limit)
	}

	text, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	return string(text), nil
}
