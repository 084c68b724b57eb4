package forecast

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/timegrid"
)

// SolarForecaster interpolates sparse multi-day solar point estimates
// onto the time grid.
type SolarForecaster struct {
	source SolarSource
	log    logger.Logger
}

// NewSolarForecaster builds a forecaster over the given source.
func NewSolarForecaster(source SolarSource, log logger.Logger) *SolarForecaster {
	return &SolarForecaster{source: source, log: log}
}

// Forecast returns the solar production vector. Steps beyond the last
// available point truncate the grid horizon; a source with no usable
// points at all aborts the run.
func (f *SolarForecaster) Forecast(ctx context.Context, grid *timegrid.Grid, now time.Time) ([]float64, error) {
	points, err := f.collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no solar forecast points available: %w", model.ErrMissingInput)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	anchor := grid.Align(now)
	out := make([]float64, 0, grid.Horizon())
	for t := 0; t < grid.Horizon(); t++ {
		target := grid.StepTime(anchor, t)
		v, ok := interpolate(points, target)
		if !ok {
			f.log.Infof("solar forecast ends before step %d, truncating horizon", t)
			grid.Truncate(t)
			break
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *SolarForecaster) collect(ctx context.Context) ([]SolarPoint, error) {
	var points []SolarPoint
	for _, day := range []Day{Today, Tomorrow, DayAfter} {
		pts, ok, err := f.source.SolarPoints(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("read solar points for %s: %w", day, err)
		}
		if !ok {
			f.log.Debugf("solar forecast for %s not available", day)
			continue
		}
		points = append(points, pts...)
	}
	return points, nil
}

// interpolate returns the estimate at target: an exact point value if
// one exists, otherwise the linear interpolation between the
// bracketing points. Targets outside the point range return ok=false;
// the forecaster never extrapolates.
func interpolate(points []SolarPoint, target time.Time) (float64, bool) {
	n := len(points)
	i := sort.Search(n, func(i int) bool { return !points[i].Time.Before(target) })
	if i < n && points[i].Time.Equal(target) {
		return points[i].PowerKW, true
	}
	if i == 0 || i == n {
		return 0, false
	}
	a, b := points[i-1], points[i]
	frac := target.Sub(a.Time).Seconds() / b.Time.Sub(a.Time).Seconds()
	return a.PowerKW + (b.PowerKW-a.PowerKW)*frac, true
}
