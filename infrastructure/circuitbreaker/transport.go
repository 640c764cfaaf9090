package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Transport is an http.RoundTripper with one breaker per request host.
// Transport errors, 429 and 5xx responses count as failures; a cancelled
// request counts as nothing.
type Transport struct {
	next http.RoundTripper
	cfg  Config
	now  func() time.Time

	mu    sync.Mutex
	hosts map[string]*Breaker
}

// NewTransport wraps next. A nil next uses http.DefaultTransport.
func NewTransport(next http.RoundTripper, cfg Config, now func() time.Time) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	cfg.SetDefaults()
	return &Transport{next: next, cfg: cfg, now: now, hosts: make(map[string]*Breaker)}
}

// Breaker returns the breaker for host, creating it on first use.
func (t *Transport) Breaker(host string) *Breaker {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.hosts[host]
	if !ok {
		b = New(host, t.cfg, t.now)
		t.hosts[host] = b
	}
	return b
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	b := t.Breaker(req.URL.Host)
	if err := b.Allow(); err != nil {
		return nil, err
	}

	resp, err := t.next.RoundTrip(req)
	switch {
	case err != nil:
		if errors.Is(err, context.Canceled) || errors.Is(req.Context().Err(), context.Canceled) {
			b.Release()
			return nil, err
		}
		b.Record(false)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		b.Record(false)
	default:
		b.Record(true)
	}
	return resp, err
}
