package notify

import (
	"context"

	"cluster-drift-monitor/pkg/logger"
)

// LogSink writes every alert as one structured log entry
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogSink{log: log.ForComponent("alerts")}
}

func (s *LogSink) Send(_ context.Context, alerts ...Alert) error {
	for _, a := range alerts {
		params := make([]interface{}, 0, 2*len(a.Params))
		for k, v := range a.Params {
			params = append(params, k, v)
		}
		s.log.WithFields("id", a.ID, "template", a.Template, "key", a.Key).Infow("alert raised", params...)
	}
	return nil
}
