package monitor

import (
	"context"
	"errors"
	"sync"

	"cluster-drift-monitor/pkg/models"
	"cluster-drift-monitor/pkg/notify"

	appsv1 "k8s.io/api/apps/v1"
)

type fakeRegions struct {
	regions []models.CloudRegion
	err     error
}

func (f *fakeRegions) ListRegions(context.Context) ([]models.CloudRegion, error) {
	return f.regions, f.err
}

type fakeStrategy struct {
	vms map[string][]models.VirtualMachine // by region code
	err error
}

func (f *fakeStrategy) FetchRunningVMs(_ context.Context, region models.CloudRegion) ([]models.VirtualMachine, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vms[region.Code], nil
}

type fakeResolver map[models.Provider]FetchStrategy

func (f fakeResolver) Lookup(p models.Provider) (FetchStrategy, bool) {
	s, ok := f[p]
	return s, ok
}

type fakeNodes struct {
	byIP map[string][]models.ClusterNode
	errs map[string]error
}

func (f *fakeNodes) FindNodesByAddress(_ context.Context, ip string) ([]models.ClusterNode, error) {
	if err := f.errs[ip]; err != nil {
		return nil, err
	}
	return f.byIP[ip], nil
}

type fakeJobs struct {
	mu     sync.Mutex
	jobs   map[int64]models.JobStatus
	errs   map[int64]error
	panics map[int64]bool
	calls  []int64
}

var errJobNotFound = errors.New("job not found")

func (f *fakeJobs) LoadJob(_ context.Context, id int64) (*models.ComputeJob, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()

	if f.panics[id] {
		panic("job service exploded")
	}
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	status, ok := f.jobs[id]
	if !ok {
		return nil, errJobNotFound
	}
	return &models.ComputeJob{ID: id, Status: status}, nil
}

type recordingSink struct {
	mu    sync.Mutex
	calls [][]notify.Alert
	err   error
}

func (s *recordingSink) Send(_ context.Context, alerts ...notify.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, append([]notify.Alert(nil), alerts...))
	return nil
}

func (s *recordingSink) alerts() []notify.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Alert
	for _, c := range s.calls {
		out = append(out, c...)
	}
	return out
}

func (s *recordingSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeDeployments struct {
	items map[string]*appsv1.Deployment
	errs  map[string]error
}

func (f *fakeDeployments) GetDeployment(_ context.Context, namespace, name string) (*appsv1.Deployment, error) {
	key := namespace + "/" + name
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.items[key], nil
}

type fakeStats struct {
	values map[string]string
	err    error
}

func (f *fakeStats) Load(context.Context) (map[string]string, error) {
	return f.values, f.err
}

type cycleTotals struct {
	regions, vms, findings int
}

func (c *cycleTotals) RecordReconcileCycle(regions, vms, findings int) {
	c.regions, c.vms, c.findings = regions, vms, findings
}

// droppingSink accepts every alert without forwarding it, like a debouncer inside its cooldown
type droppingSink struct {
	received int
}

func (s *droppingSink) Send(_ context.Context, alerts ...notify.Alert) error {
	s.received += len(alerts)
	return nil
}
