// Package fetcher turns an agency feed URL into raw documents. Each platform
// has its own Fetcher; the Registry picks one from the agency's platform_type.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/cadence/infrastructure/circuitbreaker"
	infrahttp "github.com/jonesrussell/north-cloud/cadence/infrastructure/http"
	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

var (
	// ErrNoFetcher means no fetcher is registered for the agency's platform.
	ErrNoFetcher = errors.New("no fetcher for platform")
	// ErrMissingCrimeMappingID means a crimemapping agency has no portal id.
	ErrMissingCrimeMappingID = errors.New("crimemapping agency id is required")
)

// Fetcher retrieves the documents currently published at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]*domain.RawDocument, error)
}

// Factory builds a Fetcher bound to one agency.
type Factory func(agency *domain.Agency) (Fetcher, error)

// Config holds settings shared by the HTTP fetchers.
type Config struct {
	UserAgent    string        `env:"FETCH_USER_AGENT" yaml:"user_agent"`
	Timeout      time.Duration `env:"FETCH_TIMEOUT"    yaml:"timeout"`
	MaxPages     int           `yaml:"max_pages"`
	LookbackDays int           `yaml:"lookback_days"`
	// CrimeMappingBaseURL is overridden in tests.
	CrimeMappingBaseURL string `yaml:"crimemapping_base_url"`
	// Breaker trips per host after consecutive transport errors, 429s or 5xx.
	Breaker circuitbreaker.Config `yaml:"breaker"`
}

const (
	defaultUserAgent        = "CadenceBot/1.0 (+https://github.com/jonesrussell/north-cloud)"
	defaultTimeout          = 30 * time.Second
	defaultMaxPages         = 5
	defaultLookbackDays     = 30
	defaultCrimeMappingBase = "https://www.crimemapping.com"
)

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = defaultLookbackDays
	}
	if c.CrimeMappingBaseURL == "" {
		c.CrimeMappingBaseURL = defaultCrimeMappingBase
	}
	c.Breaker.SetDefaults()
}

// NewHTTPClient builds the shared scraping client with a per-host breaker.
// Breaker transitions are logged.
func NewHTTPClient(cfg Config, log infralogger.Logger) *http.Client {
	cfg.SetDefaults()
	breaker := cfg.Breaker
	breaker.OnStateChange = func(host string, from, to circuitbreaker.State) {
		log.Warn("Host circuit breaker changed state",
			infralogger.String("host", host),
			infralogger.String("from", from.String()),
			infralogger.String("to", to.String()),
		)
	}
	return infrahttp.NewClient(infrahttp.ClientConfig{Timeout: cfg.Timeout, Breaker: &breaker})
}

// Registry maps platforms to fetcher factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[domain.PlatformKind]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[domain.PlatformKind]Factory)}
}

// Register sets the factory for platform, replacing any previous one.
func (r *Registry) Register(platform domain.PlatformKind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[platform] = factory
}

// For builds the fetcher for agency.
func (r *Registry) For(agency *domain.Agency) (Fetcher, error) {
	platform := agency.Platform()

	r.mu.RLock()
	factory, ok := r.factories[platform]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s (agency %s)", ErrNoFetcher, platform, agency.ID)
	}
	return factory(agency)
}

// Platforms lists the registered platforms in declaration order.
func (r *Registry) Platforms() []domain.PlatformKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.PlatformKind, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// NewDefaultRegistry registers the built-in fetchers. PDF agencies have no
// fetcher; their documents arrive through other pipelines.
func NewDefaultRegistry(client *http.Client, cfg Config, log infralogger.Logger) *Registry {
	cfg.SetDefaults()
	if client == nil {
		client = NewHTTPClient(cfg, log)
	}

	r := NewRegistry()
	r.Register(domain.PlatformRSS, func(a *domain.Agency) (Fetcher, error) {
		return NewRSS(a.ID, client, cfg), nil
	})
	r.Register(domain.PlatformCivicPlus, func(a *domain.Agency) (Fetcher, error) {
		return NewCivicPlus(a.ID, client, cfg, log), nil
	})
	alerts := func(a *domain.Agency) (Fetcher, error) {
		return NewAlerts(a.ID, client, cfg, log), nil
	}
	r.Register(domain.PlatformNixle, alerts)
	r.Register(domain.PlatformRave, alerts)
	r.Register(domain.PlatformCitizenRIMS, func(a *domain.Agency) (Fetcher, error) {
		return NewCitizenRIMS(a.ID, client, cfg, log), nil
	})
	r.Register(domain.PlatformSocrata, func(a *domain.Agency) (Fetcher, error) {
		return NewSocrata(a.ID, client, cfg), nil
	})
	r.Register(domain.PlatformArcGIS, func(a *domain.Agency) (Fetcher, error) {
		return NewArcGIS(a.ID, client, cfg), nil
	})
	r.Register(domain.PlatformCrimeMapping, func(a *domain.Agency) (Fetcher, error) {
		if !a.CrimeMappingAgencyID.Valid || a.CrimeMappingAgencyID.Int64 <= 0 {
			return nil, fmt.Errorf("%w: agency %s", ErrMissingCrimeMappingID, a.ID)
		}
		return NewCrimeMapping(a.ID, a.CrimeMappingAgencyID.Int64, client, cfg), nil
	})
	return r
}
