// Package circuit stops calling a remote slot store after repeated failures
// and probes it again once a cool-down has passed.
package circuit

import (
	"context"
	stderr "errors"
	"sync"
	"time"

	"github.com/objectfs/jailstore/internal/storage"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed passes every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the timeout elapses.
	StateOpen
	// StateHalfOpen lets MaxRequests probes through.
	StateHalfOpen
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrOpenState is returned when the circuit breaker is open
	ErrOpenState = stderr.New("circuit breaker is open")

	// ErrTooManyRequests is returned when too many requests are made in half-open state
	ErrTooManyRequests = stderr.New("too many requests in half-open state")
)

// Config contains circuit breaker configuration
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval clears the closed-state counts periodically.
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long the breaker stays open.
	Timeout time.Duration `yaml:"timeout"`

	OnStateChange func(name string, from State, to State) `yaml:"-"`

	// IsFailure decides which errors count against the remote. Defaults to
	// IsRemoteFailure.
	IsFailure func(err error) bool `yaml:"-"`

	// Now is the clock, time.Now when nil.
	Now func() time.Time `yaml:"-"`
}

// Counts holds the numbers of requests and their successes/failures
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	name   string
	config Config

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, config Config) *Breaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = IsRemoteFailure
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		expiry: config.Now().Add(config.Interval),
	}
}

// IsRemoteFailure reports whether err says something about the health of
// the store. Missing or corrupt slots, quota rejections and cancelled callers
// do not.
func IsRemoteFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case storage.IsNotFound(err), storage.IsQuotaExceeded(err), storage.IsCorrupt(err):
		return false
	case stderr.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// Execute runs fn unless the breaker rejects the call.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	b.afterRequest(err)
	return err
}

func (b *Breaker) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentState(b.config.Now())

	if state == StateOpen {
		return ErrOpenState
	}
	if state == StateHalfOpen && b.counts.Requests >= b.config.MaxRequests {
		return ErrTooManyRequests
	}

	b.counts.Requests++
	return nil
}

func (b *Breaker) afterRequest(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.config.Now()
	state := b.currentState(now)

	if b.config.IsFailure(err) {
		b.counts.onFailure()
		if state == StateHalfOpen || b.counts.ConsecutiveFailures >= b.config.FailureThreshold {
			b.setState(StateOpen, now)
		}
		return
	}

	b.counts.onSuccess()
	if state == StateHalfOpen {
		b.setState(StateClosed, now)
	}
}

func (b *Breaker) currentState(now time.Time) State {
	switch b.state {
	case StateClosed:
		if b.expiry.Before(now) {
			b.counts = Counts{}
			b.expiry = now.Add(b.config.Interval)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.setState(StateHalfOpen, now)
		}
	}
	return b.state
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state

	b.state = state
	b.counts = Counts{}

	switch state {
	case StateClosed:
		b.expiry = now.Add(b.config.Interval)
	case StateOpen:
		b.expiry = now.Add(b.config.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, prev, state)
	}
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.currentState(b.config.Now())
}

// Counts returns a copy of the current counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setState(StateClosed, b.config.Now())
	b.counts = Counts{}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}
