// Package webfetch downloads publication pages and feeds politely: a global
// rate limit, a per-host limit, a size cap and a fixed user agent.
package webfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lueurxax/acitrack/internal/platform/observability"
)

var (
	// ErrTooManyRedirects indicates too many HTTP redirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrHTTPStatusNotOK indicates an HTTP response with a non-200 status code.
	ErrHTTPStatusNotOK = errors.New("HTTP status not OK")
)

const (
	defaultTimeout     = 30 * time.Second
	defaultRPS         = 2
	defaultUserAgent   = "acitrack/1.0"
	globalLimiterBurst = 5
	maxRedirects       = 5
	maxBodySizeBytes   = 5 * 1024 * 1024
	hostLimiterRate    = 1
	hostLimiterBurst   = 2

	acceptHTML = "text/html,application/xhtml+xml"
	acceptFeed = "application/rss+xml,application/atom+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Options configures a Fetcher. Zero values fall back to defaults.
type Options struct {
	RPS       float64
	Timeout   time.Duration
	UserAgent string
	// Client replaces the default HTTP client (tests).
	Client *http.Client
}

type Fetcher struct {
	client        *http.Client
	globalLimiter *rate.Limiter
	hostLimiters  map[string]*rate.Limiter
	mu            sync.RWMutex
	userAgent     string
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.RPS <= 0 {
		opts.RPS = defaultRPS
	}

	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}

				return nil
			},
		}
	}

	return &Fetcher{
		client:        client,
		globalLimiter: rate.NewLimiter(rate.Limit(opts.RPS), globalLimiterBurst),
		hostLimiters:  make(map[string]*rate.Limiter),
		userAgent:     opts.UserAgent,
	}
}

// FetchHTML downloads a page, up to 5MB of it.
func (f *Fetcher) FetchHTML(ctx context.Context, rawURL string) ([]byte, error) {
	return f.fetch(ctx, rawURL, acceptHTML)
}

// FetchFeed downloads an RSS or Atom document.
func (f *Fetcher) FetchFeed(ctx context.Context, rawURL string) ([]byte, error) {
	return f.fetch(ctx, rawURL, acceptFeed)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, accept string) ([]byte, error) {
	if err := f.globalLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("global rate limiter wait: %w", err)
	}

	if err := f.hostLimiter(hostOf(rawURL)).Wait(ctx); err != nil {
		return nil, fmt.Errorf("host rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		observability.WebFetchRequests.WithLabelValues("error").Inc()

		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	observability.WebFetchRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatusNotOK, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}

func (f *Fetcher) hostLimiter(host string) *rate.Limiter {
	f.mu.RLock()
	limiter, exists := f.hostLimiters[host]
	f.mu.RUnlock()

	if exists {
		return limiter
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if limiter, exists := f.hostLimiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(hostLimiterRate, hostLimiterBurst)
	f.hostLimiters[host] = limiter

	return limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Host)
}
