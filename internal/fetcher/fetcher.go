package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

var (
	// ErrBlocked means Amazon refused to serve a product page. Fatal
	// for the whole run, not just the row.
	ErrBlocked = errors.New("blocked by Amazon anti-bot")

	ErrNotFoundPage = errors.New("product page not found")
	ErrBadStatus    = errors.New("unexpected response status")
)

const (
	defaultBaseURL = "https://www.amazon.com"
	maxBodySize    = 5 * 1024 * 1024
)

type Options struct {
	BaseURL    string
	UserAgents []string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// PageFetcher issues plain GETs for product pages with a desktop
// browser header set and bounded retries on transport failures.
type PageFetcher struct {
	client     *http.Client
	baseURL    string
	userAgents []string
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	nextUA int
}

func New(opts Options) *PageFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = []string{
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		}
	}

	return &PageFetcher{
		client:     &http.Client{Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		userAgents: opts.UserAgents,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     slog.Default().With("component", "fetcher"),
	}
}

// Fetch retrieves the product page HTML for a normalized ASIN.
// Transport errors and 5xx responses are retried with linear backoff;
// 404 and anti-bot statuses are returned immediately.
func (f *PageFetcher) Fetch(ctx context.Context, asin string) (string, error) {
	url := f.baseURL + "/dp/" + asin

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			f.logger.Debug("retrying fetch", "asin", asin, "attempt", attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(f.retryDelay * time.Duration(attempt)):
			}
		}

		html, err := f.fetchOnce(ctx, url)
		if err == nil {
			return html, nil
		}
		if errors.Is(err, ErrBlocked) || errors.Is(err, ErrNotFoundPage) || errors.Is(err, ErrBadStatus) || errors.Is(err, context.Canceled) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("fetch %s failed after %d attempts: %w", asin, f.maxRetries+1, lastErr)
}

func (f *PageFetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFoundPage
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		// Amazon answers throttled scrapers with 503 long before the
		// CAPTCHA page shows up.
		return "", fmt.Errorf("HTTP %d: %w", resp.StatusCode, ErrBlocked)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("HTTP %d: %w", resp.StatusCode, errRetryableStatus)
	default:
		return "", fmt.Errorf("HTTP %d: %w", resp.StatusCode, ErrBadStatus)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(body), nil
}

var errRetryableStatus = errors.New("retryable server status")

func (f *PageFetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.rotateUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "max-age=0")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

func (f *PageFetcher) rotateUserAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ua := f.userAgents[f.nextUA%len(f.userAgents)]
	f.nextUA++
	return ua
}
