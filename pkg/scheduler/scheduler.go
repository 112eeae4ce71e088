package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cluster-drift-monitor/pkg/config"
	"cluster-drift-monitor/pkg/monitor"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"
)

// Run results reported to the recorder
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultPanic   = "panic"
)

// ErrUnknownMonitor is returned by RunNow for a name that was never added
var ErrUnknownMonitor = errors.New("scheduler: unknown monitor")

// Entry binds a monitor to its cron expression. A disabled entry or one with
// a nil Monitor still fires, logs, and does nothing.
type Entry struct {
	Name     string
	Schedule string
	Monitor  monitor.Monitor
	Enabled  bool
}

func (e Entry) active() bool {
	return e.Enabled && e.Monitor != nil
}

// Recorder receives per-trigger outcomes
type Recorder interface {
	RecordMonitorRun(monitor, result string, seconds float64)
	RecordMonitorSkipped(monitor string)
}

// Scheduler fires each monitor on its own cron schedule. Every trigger is a
// separate failure boundary, and a monitor never overlaps with itself: a
// trigger that fires while the previous cycle still runs is skipped.
type Scheduler struct {
	cron     *cron.Cron
	chain    cron.Chain
	logger   logr.Logger
	recorder Recorder

	mu      sync.RWMutex
	ctx     context.Context
	entries map[string]Entry
	ids     map[string]cron.EntryID
	order   []string
}

func New(recorder Recorder) *Scheduler {
	logger := klog.NewKlogr().WithName("scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(config.ScheduleParser),
			cron.WithLogger(logger),
		),
		chain:    cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		logger:   logger,
		recorder: recorder,
		ctx:      context.Background(),
		entries:  make(map[string]Entry),
		ids:      make(map[string]cron.EntryID),
	}
}

// Add registers an entry. Names must be unique and the schedule must parse.
func (s *Scheduler) Add(e Entry) error {
	if e.Name == "" {
		return errors.New("scheduler entry needs a name")
	}
	sched, err := config.ScheduleParser.Parse(e.Schedule)
	if err != nil {
		return fmt.Errorf("monitor %s: invalid schedule %q: %w", e.Name, e.Schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.Name]; exists {
		return fmt.Errorf("monitor %s already scheduled", e.Name)
	}

	id := s.cron.Schedule(sched, s.job(e))

	s.entries[e.Name] = e
	s.ids[e.Name] = id
	s.order = append(s.order, e.Name)
	klog.Infof("Scheduled monitor %s with %q (enabled=%t)", e.Name, e.Schedule, e.active())
	return nil
}

// Start begins firing triggers; ctx is handed to every monitor run
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	klog.Infof("Scheduler started with %d monitors", len(s.Names()))
}

// Stop halts the scheduler and returns a context done once running cycles finish
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Stopping scheduler", "monitors", len(s.Names()))
	return s.cron.Stop()
}

// RunNow executes one cycle of the named monitor through the same failure
// boundary as a scheduled trigger, returning the cycle's outcome.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMonitor, name)
	}
	return s.trigger(ctx, e)
}

// Names returns the scheduled monitors in registration order
func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Next returns the next fire time of the named monitor, zero if not started
func (s *Scheduler) Next(name string) time.Time {
	s.mu.RLock()
	id, ok := s.ids[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// job wraps the trigger so that a cycle still running causes the next fire to be dropped
func (s *Scheduler) job(e Entry) cron.Job {
	return s.chain.Then(cron.FuncJob(func() {
		_ = s.trigger(s.context(), e)
	}))
}

func (s *Scheduler) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// trigger runs one cycle. Errors and panics are logged with the monitor name
// and never escape.
func (s *Scheduler) trigger(ctx context.Context, e Entry) (err error) {
	if !e.active() {
		klog.V(2).Infof("Monitor %s is disabled, skipping", e.Name)
		if s.recorder != nil {
			s.recorder.RecordMonitorSkipped(e.Name)
		}
		return nil
	}

	start := time.Now()
	result := ResultSuccess
	defer func() {
		if p := recover(); p != nil {
			klog.Errorf("Monitor %s panicked: %v", e.Name, p)
			result = ResultPanic
			err = fmt.Errorf("monitor %s panicked: %v", e.Name, p)
		}
		if s.recorder != nil {
			s.recorder.RecordMonitorRun(e.Name, result, time.Since(start).Seconds())
		}
	}()

	klog.V(3).Infof("Running monitor %s", e.Name)
	if err = e.Monitor.Run(ctx); err != nil {
		result = ResultFailure
		klog.Errorf("Monitor %s failed: %v", e.Name, err)
		return err
	}
	klog.V(3).Infof("Monitor %s finished in %s", e.Name, time.Since(start))
	return nil
}

// ValidateSchedule reports whether expr is a cron expression the scheduler accepts
func ValidateSchedule(expr string) error {
	if _, err := config.ScheduleParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// NextRun returns the first activation of expr strictly after from
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := config.ScheduleParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched.Next(from), nil
}
