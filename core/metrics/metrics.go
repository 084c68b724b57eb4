package metrics

import (
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// RunEvent summarizes one dispatch run for observability purposes.
type RunEvent struct {
	RunID         string
	Status        model.RunStatus
	Start         time.Time
	Duration      time.Duration
	SolveDuration time.Duration
	HorizonSteps  int
	PlanCostCt    float64
	Err           string
}

// RunRecorder records completed dispatch runs.
type RunRecorder interface {
	RecordRun(ev RunEvent) error
}

// ScheduleRecorder records the per-step fields of a solved schedule.
type ScheduleRecorder interface {
	RecordSchedule(runID string, s model.Schedule) error
}

// Sink is the full set of recording capabilities a metrics backend
// can provide.
type Sink interface {
	RunRecorder
	ScheduleRecorder
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunEvent) error                    { return nil }
func (NopSink) RecordSchedule(string, model.Schedule) error { return nil }

var _ Sink = NopSink{}
