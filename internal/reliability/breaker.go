package reliability

import (
	"sync"
	"time"
)

// State is one of the three circuit-breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig tunes a single circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures to trip CLOSED->OPEN
	Cooldown         time.Duration // OPEN duration before probing HALF_OPEN
	SuccessThreshold int           // consecutive HALF_OPEN successes to restore CLOSED
}

// Breaker is a consecutive-failure circuit breaker: CLOSED -> OPEN on
// FailureThreshold consecutive failures, OPEN -> HALF_OPEN after Cooldown,
// HALF_OPEN -> CLOSED after SuccessThreshold consecutive successes, and any
// HALF_OPEN failure sends it back to OPEN.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	openedAt    time.Time
}

// NewBreaker constructs a breaker in the CLOSED state.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	return &Breaker{name: name, cfg: cfg, state: StateClosed}
}

// Name returns the breaker's registry name.
func (b *Breaker) Name() string { return b.name }

// State reports the current state, transitioning OPEN->HALF_OPEN if the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.Cooldown {
		b.state = StateHalfOpen
		b.successes = 0
	}
	return b.state
}

// Allow reports whether a call may proceed, per the current state.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked() != StateOpen
}

// RecordSuccess reports a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.stateLocked() {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	case StateClosed:
		b.failures = 0
	}
}

// RecordFailure reports a failed call outcome.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.stateLocked() {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = time.Now()
		b.successes = 0
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.openedAt = time.Now()
		}
	}
}

// Execute runs op, recording its outcome, and short-circuits with
// KindCircuitOpen when the breaker is open.
func (b *Breaker) Execute(op func() error) error {
	if !b.Allow() {
		return CircuitOpen(b.name)
	}
	err := op()
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// Registry holds the breakers named in spec.md §4.I, pre-configured with
// their per-dependency defaults: embedding(threshold=3), llm(threshold=3,
// cooldown=60s), vectorStore(threshold=5, cooldown=15s), confluence
// (threshold=3, cooldown=60s).
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	defaults map[string]BreakerConfig
}

// NewRegistry builds the pre-configured breaker registry. tuning overrides
// the global failure threshold and cooldown (from config.ReliabilityConfig)
// on top of the per-dependency defaults, matching the spec's leeway for a
// deployment to retune without code changes.
func NewRegistry(tuning BreakerConfig) *Registry {
	r := &Registry{
		breakers: make(map[string]*Breaker),
		defaults: map[string]BreakerConfig{
			"embedding":    mergeDefaults(BreakerConfig{FailureThreshold: 3, Cooldown: 30 * time.Second}, tuning),
			"llm":          mergeDefaults(BreakerConfig{FailureThreshold: 3, Cooldown: 60 * time.Second}, tuning),
			"vectorStore":  mergeDefaults(BreakerConfig{FailureThreshold: 5, Cooldown: 15 * time.Second}, tuning),
			"confluence":   mergeDefaults(BreakerConfig{FailureThreshold: 3, Cooldown: 60 * time.Second}, tuning),
		},
	}
	return r
}

func mergeDefaults(d, tuning BreakerConfig) BreakerConfig {
	if tuning.FailureThreshold > 0 {
		d.FailureThreshold = tuning.FailureThreshold
	}
	if tuning.Cooldown > 0 && d.Cooldown == 0 {
		d.Cooldown = tuning.Cooldown
	}
	if d.SuccessThreshold <= 0 {
		d.SuccessThreshold = 2
	}
	return d
}

// Get returns the named breaker, constructing it on first use. opts
// overrides the pre-configured default when non-zero.
func (r *Registry) Get(name string, opts ...BreakerConfig) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	cfg := r.defaults[name]
	if len(opts) > 0 {
		cfg = opts[0]
	}
	b := NewBreaker(name, cfg)
	r.breakers[name] = b
	return b
}

// Snapshot returns the current state of every breaker constructed so far,
// for a /health or /metrics surface.
func (r *Registry) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State().String()
	}
	return out
}
