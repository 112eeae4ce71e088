package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Streams debounces each alert stream (Alert.Key) independently by keeping a
// Debounced per key. Streams are created on first use and kept for the
// lifetime of the process.
type Streams struct {
	sink  Sink
	delay time.Duration
	now   Clock

	// OnSuppress is handed to every stream created after it is set
	OnSuppress func(dropped int)

	mu      sync.Mutex
	streams map[string]*Debounced
}

func NewStreams(sink Sink, delay time.Duration) *Streams {
	return NewStreamsWithClock(sink, delay, time.Now)
}

func NewStreamsWithClock(sink Sink, delay time.Duration, now Clock) *Streams {
	return &Streams{
		sink:    sink,
		delay:   delay,
		now:     now,
		streams: make(map[string]*Debounced),
	}
}

func (s *Streams) stream(key string) *Debounced {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.streams[key]
	if !ok {
		d = NewDebouncedWithClock(s.sink, s.delay, s.now)
		d.OnSuppress = s.OnSuppress
		s.streams[key] = d
	}
	return d
}

// Send groups alerts by key, preserving first-seen order, and routes each
// group through its own debouncer.
func (s *Streams) Send(ctx context.Context, alerts ...Alert) error {
	var order []string
	groups := make(map[string][]Alert)
	for _, a := range alerts {
		if _, seen := groups[a.Key]; !seen {
			order = append(order, a.Key)
		}
		groups[a.Key] = append(groups[a.Key], a)
	}

	var errs []error
	for _, key := range order {
		if err := s.stream(key).Send(ctx, groups[key]...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of known streams
func (s *Streams) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// DebounceEach gives every sink its own Streams and fans out to all of them.
// A sink that keeps failing is retried on every call while the others stay
// inside their cooldown.
func DebounceEach(sinks []Sink, delay time.Duration, now Clock, onSuppress func(dropped int)) Multi {
	out := make(Multi, 0, len(sinks))
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		s := NewStreamsWithClock(sink, delay, now)
		s.OnSuppress = onSuppress
		out = append(out, s)
	}
	return out
}
