package proxy

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

const (
	probeTimeout     = 5 * time.Second
	probeConcurrency = 50
)

// Supplier hands out proxy URLs in round-robin order
type Supplier interface {
	Get() string
	Len() int
}

type supplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewSupplier keeps the proxies that can reach testURL. An empty testURL keeps
// every proxy untested.
func NewSupplier(ctx context.Context, proxies []string, testURL string) Supplier {
	if len(proxies) == 0 || testURL == "" {
		return &supplier{proxies: proxies}
	}

	log.Infof("🔄 Testing %d proxies in parallel...", len(proxies))

	working := make([]bool, len(proxies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, proxyURL := range proxies {
		g.Go(func() error {
			log.Debugf("🔄 Testing proxy %d/%d: %s", i+1, len(proxies), proxyURL)
			working[i] = isProxyValid(gctx, proxyURL, testURL)
			if working[i] {
				log.Infof("✅ Proxy %s is working", proxyURL)
			} else {
				log.Infof("❌ Proxy %s is not working, skipping", proxyURL)
			}
			return nil
		})
	}
	_ = g.Wait()

	valid := make([]string, 0, len(proxies))
	for i, ok := range working {
		if ok {
			valid = append(valid, proxies[i])
		}
	}

	log.Infof("✅ Proxy supplier initialized with %d working proxies out of %d tested", len(valid), len(proxies))
	return &supplier{proxies: valid}
}

// Get returns the next proxy URL, or "" when there are none
func (p *supplier) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxy := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)
	return proxy
}

func (p *supplier) Len() int {
	return len(p.proxies)
}

func isProxyValid(ctx context.Context, proxyURL, testURL string) bool {
	client := resty.New().
		SetTimeout(probeTimeout).
		SetRetryCount(0).
		SetProxy(proxyURL).
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(testURL)
	if err != nil {
		log.Debugf("Proxy test failed for %s: %v", proxyURL, err)
		return false
	}
	if resp.IsError() {
		log.Debugf("Proxy test failed for %s with status: %s", proxyURL, resp.Status())
		return false
	}
	return true
}
