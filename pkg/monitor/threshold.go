package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cluster-drift-monitor/pkg/models"
	"cluster-drift-monitor/pkg/notify"
	"cluster-drift-monitor/pkg/storage"

	"k8s.io/klog/v2"
)

// unknownValue stands in for a metric missing from the snapshot
const unknownValue int64 = -1

// ThresholdMonitor alerts when a metric goes above its static threshold.
// Each key is re-alerted at most once per resend delay, tracked per sink.
type ThresholdMonitor struct {
	source      StatsSource
	targets     []thresholdTarget
	thresholds  map[string]int64
	resendDelay time.Duration
	now         notify.Clock
	suppressed  SuppressionRecorder

	// serializes filter, send and record across overlapping cycles
	mu sync.Mutex
}

// thresholdTarget is one delivery sink with its own cooldown state, so a sink
// that keeps failing does not make the others resend
type thresholdTarget struct {
	sink      notify.Sink
	cooldowns *storage.CooldownStore
}

func NewThresholdMonitor(source StatsSource, thresholds map[string]int64, resendDelay time.Duration, sinks ...notify.Sink) *ThresholdMonitor {
	copied := make(map[string]int64, len(thresholds))
	for k, v := range thresholds {
		copied[k] = v
	}
	targets := make([]thresholdTarget, 0, len(sinks))
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		targets = append(targets, thresholdTarget{sink: sink, cooldowns: storage.NewCooldownStore()})
	}
	return &ThresholdMonitor{
		source:      source,
		targets:     targets,
		thresholds:  copied,
		resendDelay: resendDelay,
		now:         time.Now,
	}
}

// WithClock replaces the time source, for tests
func (m *ThresholdMonitor) WithClock(now notify.Clock) *ThresholdMonitor {
	m.now = now
	return m
}

// WithSuppressionRecorder reports alerts dropped by cooldown
func (m *ThresholdMonitor) WithSuppressionRecorder(rec SuppressionRecorder) *ThresholdMonitor {
	m.suppressed = rec
	return m
}

func (m *ThresholdMonitor) Name() string {
	return "thresholds"
}

func (m *ThresholdMonitor) Run(ctx context.Context) error {
	if len(m.thresholds) == 0 {
		klog.V(3).Info("No thresholds configured, skipping")
		return nil
	}

	raw, err := m.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	latest := WholeNumbers(raw)

	m.mu.Lock()
	defer m.mu.Unlock()

	events := m.exceeded(latest, m.now())
	if len(events) == 0 {
		return nil
	}

	pending := make([][]models.ThresholdEvent, len(m.targets))
	due := make(map[string]bool, len(events))
	dropped := 0
	for i, target := range m.targets {
		for _, ev := range events {
			if target.cooldowns.InCooldown(ev.Key, ev.Timestamp, m.resendDelay) {
				dropped++
				continue
			}
			pending[i] = append(pending[i], ev)
			due[ev.Key] = true
		}
	}
	if dropped > 0 && m.suppressed != nil {
		m.suppressed.RecordAlertSuppressed("threshold-cooldown", dropped)
	}

	for _, ev := range events {
		if due[ev.Key] {
			klog.Warningf("Threshold %s exceeded: %d > %d", ev.Key, ev.Actual, ev.Threshold)
		} else {
			klog.V(3).Infof("Threshold %s exceeded (%d > %d) but still in cooldown", ev.Key, ev.Actual, ev.Threshold)
		}
	}

	var errs []error
	for i, target := range m.targets {
		if len(pending[i]) == 0 {
			continue
		}
		alerts := make([]notify.Alert, 0, len(pending[i]))
		for _, ev := range pending[i] {
			alerts = append(alerts, notify.NewThresholdAlert(ev))
		}
		if err := target.sink.Send(ctx, alerts...); err != nil {
			errs = append(errs, fmt.Errorf("failed to send threshold alerts to sink %d: %w", i, err))
			continue
		}
		for _, ev := range pending[i] {
			target.cooldowns.Record(ev.Key, ev.Timestamp)
		}
	}
	return errors.Join(errs...)
}

// exceeded builds one event per configured key whose value is above its threshold.
// Keys are visited in sorted order so batches are deterministic.
func (m *ThresholdMonitor) exceeded(latest map[string]int64, now time.Time) []models.ThresholdEvent {
	keys := make([]string, 0, len(m.thresholds))
	for k := range m.thresholds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var events []models.ThresholdEvent
	for _, key := range keys {
		threshold := m.thresholds[key]
		actual, ok := latest[key]
		if !ok {
			actual = unknownValue
		}
		if actual > threshold {
			events = append(events, models.ThresholdEvent{
				Key:       key,
				Threshold: threshold,
				Actual:    actual,
				Timestamp: now,
			})
		}
	}
	return events
}

// WholeNumbers keeps only the entries whose value parses as an integer
func WholeNumbers(raw map[string]string) map[string]int64 {
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out
}
