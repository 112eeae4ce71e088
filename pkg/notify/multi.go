package notify

import (
	"context"
	"errors"
	"fmt"
)

// Multi fans every call out to all sinks. A failing sink does not stop the others.
type Multi []Sink

func (m Multi) Send(ctx context.Context, alerts ...Alert) error {
	var errs []error
	for i, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, alerts...); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// AlertRecorder receives one call per alert that reached the named sink
type AlertRecorder interface {
	RecordAlertSent(sink, template string)
}

// Counting records every alert the wrapped sink accepted, labelled with Name
type Counting struct {
	Name     string
	Sink     Sink
	Recorder AlertRecorder
}

func (c Counting) Send(ctx context.Context, alerts ...Alert) error {
	if err := c.Sink.Send(ctx, alerts...); err != nil {
		return err
	}
	if c.Recorder != nil {
		for _, a := range alerts {
			c.Recorder.RecordAlertSent(c.Name, a.Template)
		}
	}
	return nil
}
