package resilience

import (
	"sync"
	"time"
)

// State is the circuit position for one source.
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
		return "half_open"
	default:
		return "unknown"
	}
}

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 60 * time.Second
)

// Breaker is a three-state circuit breaker owned by exactly one source's
// wrapper. Closed calls pass through and count failures; once the threshold
// is reached the circuit opens and rejects calls without touching the
// network; after the cooldown a single half-open trial decides whether to
// close again.
type Breaker struct {
	mu            sync.Mutex
	threshold     int
	cooldown      time.Duration
	now           func() time.Time
	state         State
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

// BreakerSnapshot is a point-in-time view for status reporting.
type BreakerSnapshot struct {
	State    State
	Failures int
	OpenedAt time.Time
}

// NewBreaker builds a closed breaker; non-positive arguments fall back to
// defaults.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// CanExecute reports whether a call would currently be admitted. It is a
// pure query: an open circuit whose cooldown has elapsed reports eligible,
// but the transition to half-open only happens inside Allow.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return b.now().Sub(b.openedAt) >= b.cooldown
	case StateHalfOpen:
		return !b.trialInFlight
	default:
		return false
	}
}

// Allow admits or rejects a call attempt. On an open circuit past its
// cooldown it moves to half-open and reserves the single trial slot; a
// rejected call yields a circuit-open Error without any network attempt.
func (b *Breaker) Allow(source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return &Error{Kind: KindCircuitOpen, Source: source}
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			return &Error{Kind: KindCircuitOpen, Source: source}
		}
		b.trialInFlight = true
		return nil
	default:
		return &Error{Kind: KindCircuitOpen, Source: source}
	}
}

// RecordSuccess closes the circuit and resets the failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.state = StateClosed
		b.failures = 0
		b.trialInFlight = false
	}
}

// RecordFailure counts one failed call; reaching the threshold, or failing
// the half-open trial, opens the circuit and restarts the cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
		b.trialInFlight = false
	}
}

// Snapshot returns the current state for diagnostics; it never blocks the
// call path beyond the breaker's own mutex.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BreakerSnapshot{
		State:    b.state,
		Failures: b.failures,
		OpenedAt: b.openedAt,
	}
}
