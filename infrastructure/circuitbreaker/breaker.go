// Package circuitbreaker stops calling a host that keeps failing and lets a
// probe through once a cooldown has passed.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 1
	defaultCooldown         = 5 * time.Minute
)

// Config configures a breaker.
type Config struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int `yaml:"failure_threshold"`
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int `yaml:"success_threshold"`
	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration `yaml:"cooldown"`
	// OnStateChange, if set, is called with the breaker's name on every
	// transition. It runs under the breaker lock and must not call back into it.
	OnStateChange func(name string, from, to State) `yaml:"-"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = defaultSuccessThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
}

// Breaker is one circuit. It is safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

// New creates a closed breaker.
func New(name string, cfg Config, now func() time.Time) *Breaker {
	cfg.SetDefaults()
	if now == nil {
		now = time.Now
	}
	return &Breaker{name: name, cfg: cfg, now: now}
}

// Allow reports whether a call may proceed. In half-open state only one probe
// is in flight at a time.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		wait := b.cfg.Cooldown - b.now().Sub(b.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w for %s: retry in %s", ErrCircuitOpen, b.name, wait.Round(time.Second))
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return fmt.Errorf("%w for %s: probe in flight", ErrCircuitOpen, b.name)
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Record reports the outcome of an allowed call.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if success {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.transition(StateClosed)
			}
		}
		return
	}

	b.failures++
	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen)
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateOpen:
	}
}

// Release ends an allowed call without counting it either way.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
