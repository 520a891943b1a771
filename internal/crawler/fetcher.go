package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/privacygap/internal/model"
)

const (
	// DefaultUserAgent is a current desktop Chrome user agent. Many sites
	// serve a reduced page to unknown clients.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	// DefaultFetchTimeout bounds a single request including the body read.
	DefaultFetchTimeout = 20 * time.Second

	// DefaultRequestInterval is the minimum gap between two requests of one scan.
	DefaultRequestInterval = 250 * time.Millisecond
)

// Fetcher issues GET requests for a single scan and parses HTML responses.
//
// A Fetcher paces its own requests, so it must not be shared between scans
// that are meant to run independently.
type Fetcher struct {
	// client performs the requests. Its Jar, if any, receives cookies.
	client *http.Client

	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// timeout bounds each request.
	timeout time.Duration

	// headers are added to every request.
	headers map[string]string

	// cookie is sent verbatim as the Cookie header when set.
	cookie string

	// limiter paces requests. Nil means unpaced.
	limiter *rate.Limiter
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per response.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRequestInterval sets the minimum time between two requests.
// Zero or a negative value disables pacing.
func WithRequestInterval(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithHeaders adds extra request headers.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *Fetcher) {
		for k, v := range headers {
			f.headers[k] = v
		}
	}
}

// WithCookie sets a raw Cookie header for sites that need a session.
func WithCookie(cookie string) FetcherOption {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// NewFetcher creates a Fetcher that uses client for every request.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: model.MaxPageSize,
		timeout:     DefaultFetchTimeout,
		headers:     make(map[string]string),
		limiter:     rate.NewLimiter(rate.Every(DefaultRequestInterval), 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves pageURL. Any response, whatever its status, is returned
// as a Page; HTML bodies are parsed into the page's elements. An error is
// returned only when no response was received.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*model.Page, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTargetUnreachable, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTargetUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrTargetUnreachable, err)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	page := &model.Page{
		URL:         pageURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		Raw:         body,
	}
	if f.client.Jar != nil && resp.Request != nil {
		page.Cookies = f.client.Jar.Cookies(resp.Request.URL)
	}

	if page.IsHTML() {
		parser, err := NewParser(finalURL)
		if err == nil {
			if result, err := parser.Parse(bytes.NewReader(body)); err == nil {
				result.apply(page)
			}
		}
	}
	return page, nil
}
