package scrape

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/leadboost/leadboost/internal/config"
)

// fetcher is the shared HTTP layer for the document tiers. One client, one
// per-host rate limiter map.
type fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	hostRate     rate.Limit
	hostBurst    int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newFetcher(cfg config.ScrapeConfig) *fetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 25 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody == 0 {
		maxBody = 2 * 1024 * 1024
	}
	hostRate := rate.Limit(cfg.HostRatePerSec)
	if hostRate == 0 {
		hostRate = 2
	}
	burst := cfg.HostRateBurst
	if burst == 0 {
		burst = 4
	}
	return &fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: maxBody,
		hostRate:     hostRate,
		hostBurst:    burst,
		limiters:     make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the rate limiter for the URL's host, creating one on
// first use.
func (f *fetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.hostRate, f.hostBurst)
		f.limiters[host] = l
	}
	return l
}

// Get fetches a URL, caps the body, and decodes non-UTF8 charsets.
func (f *fetcher) Get(ctx context.Context, targetURL string) ([]byte, error) {
	if err := f.limiterFor(targetURL).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "scrape: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read body")
	}

	return decodeCharset(body, resp.Header.Get("Content-Type"))
}

// Document fetches a URL and parses it with goquery.
func (f *fetcher) Document(ctx context.Context, targetURL string) (*goquery.Document, error) {
	body, err := f.Get(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}
	return doc, nil
}

// decodeCharset converts the body to UTF-8 when the Content-Type names a
// different charset. Unknown charsets pass through unchanged.
func decodeCharset(body []byte, contentType string) ([]byte, error) {
	if contentType == "" {
		return body, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body, nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return body, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return body, nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: decode charset %s", charset)
	}
	return decoded, nil
}
