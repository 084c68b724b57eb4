package forecast

import (
	"context"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// Day selects one of the calendar days a forecast source can cover.
type Day int

const (
	Today Day = iota
	Tomorrow
	DayAfter
)

func (d Day) String() string {
	switch d {
	case Today:
		return "today"
	case Tomorrow:
		return "tomorrow"
	case DayAfter:
		return "day_after_tomorrow"
	default:
		return "unknown"
	}
}

// HistorySource fetches raw historical samples of a platform entity.
type HistorySource interface {
	Fetch(ctx context.Context, entity string, start, end time.Time) ([]model.HistorySample, error)
}

// StateSource reads a single current value. The bool result reports
// whether the value is present.
type StateSource interface {
	Read(ctx context.Context, ref string) (string, bool, error)
}

// SolarPoint is one sparse solar production estimate.
type SolarPoint struct {
	Time    time.Time `json:"time"`
	PowerKW float64   `json:"power_kw"`
}

// SolarSource provides the sparse per-day solar point estimates.
// Absent days return ok=false without error.
type SolarSource interface {
	SolarPoints(ctx context.Context, day Day) ([]SolarPoint, bool, error)
}

// PriceSource provides one day-ahead price table per day, one entry
// per grid step of the day, in EUR/kWh. Absent days return ok=false
// without error.
type PriceSource interface {
	Prices(ctx context.Context, day Day) ([]float64, bool, error)
}
