package stats

import (
	"context"
	"errors"
	"fmt"

	"cluster-drift-monitor/pkg/monitor"

	"k8s.io/klog/v2"
)

// Named tags a stats source for logging
type Named struct {
	Name   string
	Source monitor.StatsSource
}

// Merged combines several stats sources into one snapshot. Later sources win
// on key collisions. A failing source is skipped unless every source fails.
type Merged []Named

func (m Merged) Load(ctx context.Context) (map[string]string, error) {
	if len(m) == 0 {
		return nil, errors.New("no stats sources configured")
	}

	out := make(map[string]string)
	var errs []error
	for _, src := range m {
		values, err := src.Source.Load(ctx)
		if err != nil {
			klog.Warningf("Stats source %s failed: %v", src.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		for k, v := range values {
			out[k] = v
		}
	}

	if len(errs) == len(m) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
