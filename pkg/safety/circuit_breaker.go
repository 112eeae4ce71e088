package safety

import (
	"context"
	"errors"
	"sync"
	"time"

	"cluster-drift-monitor/pkg/notify"

	"k8s.io/klog/v2"
)

// ErrCircuitOpen is returned while the breaker refuses deliveries
var ErrCircuitOpen = errors.New("circuit breaker open")

type CircuitState int

const (
	CircuitStateClosed CircuitState = iota
	CircuitStateOpen
	CircuitStateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitStateClosed:
		return "Closed"
	case CircuitStateOpen:
		return "Open"
	case CircuitStateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// BreakerOptions configures the thresholds of a CircuitBreaker. Zero values take defaults.
type BreakerOptions struct {
	ErrorThreshold   int
	SuccessThreshold int
	Timeout          time.Duration
}

// CircuitBreaker guards a notification sink. After ErrorThreshold consecutive
// failures it stops forwarding for Timeout, then lets calls through half-open
// until SuccessThreshold consecutive successes close it again.
type CircuitBreaker struct {
	name string
	sink notify.Sink
	opts BreakerOptions
	now  notify.Clock

	mu                   sync.Mutex
	state                CircuitState
	consecutiveErrors    int
	consecutiveSuccesses int
	openedAt             time.Time
}

func NewCircuitBreaker(name string, sink notify.Sink, opts BreakerOptions) *CircuitBreaker {
	if opts.ErrorThreshold <= 0 {
		opts.ErrorThreshold = 5
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &CircuitBreaker{
		name: name,
		sink: sink,
		opts: opts,
		now:  time.Now,
	}
}

// WithClock replaces the time source, for tests
func (cb *CircuitBreaker) WithClock(now notify.Clock) *CircuitBreaker {
	cb.now = now
	return cb
}

func (cb *CircuitBreaker) Send(ctx context.Context, alerts ...notify.Alert) error {
	if !cb.shouldAllow() {
		return ErrCircuitOpen
	}

	err := cb.sink.Send(ctx, alerts...)
	if err != nil {
		cb.recordFailure(err)
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) shouldAllow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitStateOpen {
		return true
	}
	if elapsed := cb.now().Sub(cb.openedAt); elapsed >= cb.opts.Timeout {
		cb.state = CircuitStateHalfOpen
		cb.consecutiveErrors = 0
		cb.consecutiveSuccesses = 0
		klog.Infof("Circuit breaker for %s entering half-open state after %v", cb.name, cb.opts.Timeout)
		return true
	}
	return false
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveErrors = 0
	cb.consecutiveSuccesses++

	if cb.state == CircuitStateHalfOpen && cb.consecutiveSuccesses >= cb.opts.SuccessThreshold {
		cb.state = CircuitStateClosed
		cb.consecutiveSuccesses = 0
		klog.Infof("Circuit breaker for %s closed after %d consecutive successes", cb.name, cb.opts.SuccessThreshold)
	}
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveSuccesses = 0
	cb.consecutiveErrors++

	// a failed probe reopens immediately
	if cb.state == CircuitStateHalfOpen || cb.consecutiveErrors >= cb.opts.ErrorThreshold {
		if cb.state != CircuitStateOpen {
			klog.Warningf("Circuit breaker for %s opened after %d consecutive errors: %v", cb.name, cb.consecutiveErrors, err)
		}
		cb.state = CircuitStateOpen
		cb.openedAt = cb.now()
	}
}
