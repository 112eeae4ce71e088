package notify

import (
	"context"
	"sync"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(d time.Duration, base time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = base.Add(d)
}

type recordingSink struct {
	mu    sync.Mutex
	calls [][]Alert
	err   error
}

func (s *recordingSink) Send(_ context.Context, alerts ...Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, append([]Alert(nil), alerts...))
	return nil
}

func (s *recordingSink) Calls() [][]Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
