// Package timegrid maps calendar time onto the fixed-step planning
// grid shared by the forecasters, the optimizer and the analytics.
package timegrid

import (
	"fmt"
	"time"
)

// Grid carries the step size and the remaining horizon of one run.
// The horizon may shrink while forecasts are assembled, never grow;
// all per-step vectors of a run are aligned to the same anchor time.
type Grid struct {
	stepMinutes int
	horizon     int
}

// New validates the step size and horizon. stepMinutes must divide 60
// so day and hour boundaries fall on step boundaries.
func New(stepMinutes, horizonSteps int) (*Grid, error) {
	if stepMinutes <= 0 || 60%stepMinutes != 0 {
		return nil, fmt.Errorf("step minutes must be a positive divisor of 60, got %d", stepMinutes)
	}
	if horizonSteps <= 0 {
		return nil, fmt.Errorf("horizon steps must be positive, got %d", horizonSteps)
	}
	return &Grid{stepMinutes: stepMinutes, horizon: horizonSteps}, nil
}

// StepMinutes returns the step size in minutes.
func (g *Grid) StepMinutes() int { return g.stepMinutes }

// Step returns the step size as a duration.
func (g *Grid) Step() time.Duration {
	return time.Duration(g.stepMinutes) * time.Minute
}

// StepHours returns the step size as a fraction of an hour.
func (g *Grid) StepHours() float64 { return float64(g.stepMinutes) / 60 }

// Horizon returns the current number of future steps.
func (g *Grid) Horizon() int { return g.horizon }

// Truncate shrinks the horizon to steps. Larger values are ignored:
// the horizon never grows within a run.
func (g *Grid) Truncate(steps int) {
	if steps < 0 {
		steps = 0
	}
	if steps < g.horizon {
		g.horizon = steps
	}
}

// StepsPerHour returns the number of steps in one hour.
func (g *Grid) StepsPerHour() int { return 60 / g.stepMinutes }

// SlotsPerDay returns the number of time-of-day slots.
func (g *Grid) SlotsPerDay() int { return 1440 / g.stepMinutes }

// Align rounds t down to the nearest step boundary of its local
// calendar day. Rounding works on the wall-clock fields rather than
// absolute intervals so zones with fractional UTC offsets still
// anchor on whole local steps.
func (g *Grid) Align(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(),
		t.Minute()-t.Minute()%g.stepMinutes, 0, 0, t.Location())
}

// StepTime returns the calendar time of step t relative to anchor.
func (g *Grid) StepTime(anchor time.Time, t int) time.Time {
	return anchor.Add(time.Duration(t) * g.Step())
}

// SlotOf returns the time-of-day slot of t in t's location.
func (g *Grid) SlotOf(t time.Time) int {
	return t.Hour()*g.StepsPerHour() + t.Minute()/g.stepMinutes
}
