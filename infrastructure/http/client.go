// Package http builds the outbound HTTP client used for scraping.
package http

import (
	"net"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/cadence/infrastructure/circuitbreaker"
)

const (
	DefaultTimeout               = 30 * time.Second
	DefaultMaxIdleConns          = 100
	DefaultMaxIdleConnsPerHost   = 4
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultResponseHeaderTimeout = 20 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultDialTimeout           = 10 * time.Second
)

// ClientConfig configures the client. Zero values take the defaults above.
type ClientConfig struct {
	Timeout               time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	ResponseHeaderTimeout time.Duration
	TLSHandshakeTimeout   time.Duration

	// Breaker, when set, wraps the transport with a per-host circuit breaker.
	Breaker *circuitbreaker.Config
}

func (c *ClientConfig) setDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = DefaultIdleConnTimeout
	}
	if c.ResponseHeaderTimeout == 0 {
		c.ResponseHeaderTimeout = DefaultResponseHeaderTimeout
	}
	if c.TLSHandshakeTimeout == 0 {
		c.TLSHandshakeTimeout = DefaultTLSHandshakeTimeout
	}
}

// NewClient creates an HTTP client with pooled keep-alive connections.
func NewClient(cfg ClientConfig) *http.Client {
	cfg.setDefaults()

	var transport http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: DefaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
	}
	if cfg.Breaker != nil {
		transport = circuitbreaker.NewTransport(transport, *cfg.Breaker, nil)
	}

	return &http.Client{Timeout: cfg.Timeout, Transport: transport}
}
