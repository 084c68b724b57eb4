package metrics

import (
	coremetrics "github.com/CWILDMOUNTAIN/ha-wattwise/core/metrics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRun(ev coremetrics.RunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordSchedule forwards the schedule to all sinks, returning the first error encountered.
func (m *MultiSink) RecordSchedule(runID string, sched model.Schedule) error {
	for _, s := range m.Sinks {
		if err := s.RecordSchedule(runID, sched); err != nil {
			return err
		}
	}
	return nil
}

var _ coremetrics.Sink = (*MultiSink)(nil)
