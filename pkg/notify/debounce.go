package notify

import (
	"context"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// Clock returns the current time; tests substitute a fake
type Clock func() time.Time

// Debounced forwards to the wrapped sink at most once per delay.
// One instance guards one alert stream; calls inside the cooldown are dropped.
type Debounced struct {
	sink  Sink
	delay time.Duration
	now   Clock

	// OnSuppress, when set, is called with the number of dropped alerts
	OnSuppress func(dropped int)

	mu       sync.Mutex
	previous time.Time
}

func NewDebounced(sink Sink, delay time.Duration) *Debounced {
	return NewDebouncedWithClock(sink, delay, time.Now)
}

func NewDebouncedWithClock(sink Sink, delay time.Duration, now Clock) *Debounced {
	if now == nil {
		now = time.Now
	}
	return &Debounced{
		sink:  sink,
		delay: delay,
		now:   now,
	}
}

// Send forwards alerts if the cooldown since the previous successful send has
// elapsed. The decision and the timestamp update happen under one lock so
// concurrent callers cannot both forward.
func (d *Debounced) Send(ctx context.Context, alerts ...Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	remaining := d.previous.Add(d.delay).Sub(now)
	if remaining > 0 {
		klog.V(3).Infof("Notification suppressed, cooldown has %s left", remaining.Round(time.Second))
		if d.OnSuppress != nil {
			d.OnSuppress(len(alerts))
		}
		return nil
	}

	if err := d.sink.Send(ctx, alerts...); err != nil {
		return err
	}
	d.previous = now
	return nil
}

// Remaining reports how long until the next send would be forwarded
func (d *Debounced) Remaining() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	remaining := d.previous.Add(d.delay).Sub(d.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
