package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"harvest/scraper/internal/config"
	"harvest/scraper/internal/domain"
	"harvest/scraper/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// HTTPFetcher fetches documents over HTTP at a capped request rate, spreading
// requests over the configured proxies.
type HTTPFetcher struct {
	rl      ratelimit.Limiter
	clients []*resty.Client
	next    atomic.Uint64
	markers []string
}

// NewHTTPFetcher builds one resty client per proxy, or a single direct client
// when the supplier is empty or nil.
func NewHTTPFetcher(cfg config.HTTPConfig, proxies proxy.Supplier) *HTTPFetcher {
	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	n := 1
	if proxies != nil && proxies.Len() > 0 {
		n = proxies.Len()
	}

	clients := make([]*resty.Client, 0, n)
	for range n {
		client := newRestyClient(cfg)
		if proxies != nil {
			if proxyURL := proxies.Get(); proxyURL != "" {
				client.SetProxy(proxyURL)
				log.Infof("🔗 Using proxy: %s", proxyURL)
			}
		}
		clients = append(clients, client)
	}

	return &HTTPFetcher{
		rl:      rl,
		clients: clients,
		markers: cfg.RateLimitMarkers,
	}
}

func newRestyClient(cfg config.HTTPConfig) *resty.Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0). // Retries belong to the pipeline's policy
		SetHeader("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.5")

	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if len(cfg.Headers) > 0 {
		client.SetHeaders(cfg.Headers)
	}
	if cfg.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})
	}
	return client
}

// Fetch performs one GET. Completed requests come back with their status even
// when it is not 2xx; a body carrying a throttle marker is reported as 429.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*domain.Response, error) {
	f.rl.Take()

	client := f.clients[(f.next.Add(1)-1)%uint64(len(f.clients))]

	start := time.Now()
	resp, err := client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		// Check if this is a context cancellation from the parent context
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, transportError(url, err)
	}

	body := resp.String()
	status := resp.StatusCode()
	if status == http.StatusOK && f.throttled(body) {
		log.Warnf("🚫 Rate limit marker in response for URL: %s", url)
		status = http.StatusTooManyRequests
	}

	log.Debugf("Fetched %s with status %d in %v", url, status, time.Since(start).Round(time.Millisecond))
	return &domain.Response{
		URL:    url,
		Status: status,
		Body:   []byte(body),
	}, nil
}

// Close releases the idle connections of every client.
func (f *HTTPFetcher) Close() error {
	var errs []error
	for _, client := range f.clients {
		errs = append(errs, client.Close())
	}
	return errors.Join(errs...)
}

func (f *HTTPFetcher) throttled(body string) bool {
	for _, marker := range f.markers {
		if marker != "" && strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

func transportError(url string, err error) *domain.FetchError {
	kind := domain.KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = domain.KindTimeout
	}
	return &domain.FetchError{Kind: kind, URL: url, Err: err}
}
