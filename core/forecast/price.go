package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/timegrid"
)

// PriceForecaster assembles the per-step price vector from day-ahead
// tariff tables. Prices are normalized to ct/kWh (source EUR/kWh
// times 100).
type PriceForecaster struct {
	source PriceSource
	log    logger.Logger
}

// NewPriceForecaster builds a forecaster over the given source.
func NewPriceForecaster(source PriceSource, log logger.Logger) *PriceForecaster {
	return &PriceForecaster{source: source, log: log}
}

// Forecast returns the price vector. Steps past the end of the
// combined tables truncate the grid horizon; an absent today table
// aborts the run.
func (f *PriceForecaster) Forecast(ctx context.Context, grid *timegrid.Grid, now time.Time) ([]float64, error) {
	combined, err := f.combined(ctx)
	if err != nil {
		return nil, err
	}

	anchor := grid.Align(now)
	current := grid.SlotOf(anchor)
	out := make([]float64, 0, grid.Horizon())
	for t := 0; t < grid.Horizon(); t++ {
		idx := current + t
		if idx >= len(combined) {
			f.log.Infof("price table ends before step %d, truncating horizon", t)
			grid.Truncate(t)
			break
		}
		out = append(out, combined[idx]*100)
	}
	return out, nil
}

// Days returns the available daily tables in ct/kWh with their local
// midnights, for the window analytics.
func (f *PriceForecaster) Days(ctx context.Context, grid *timegrid.Grid, now time.Time) ([]model.DayPrices, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var days []model.DayPrices
	for i, day := range []Day{Today, Tomorrow, DayAfter} {
		table, ok, err := f.source.Prices(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("read price table for %s: %w", day, err)
		}
		if !ok {
			continue
		}
		steps := make([]float64, len(table))
		for j, p := range table {
			steps[j] = p * 100
		}
		days = append(days, model.DayPrices{Date: midnight.AddDate(0, 0, i), StepPrices: steps})
	}
	return days, nil
}

func (f *PriceForecaster) combined(ctx context.Context) ([]float64, error) {
	today, ok, err := f.source.Prices(ctx, Today)
	if err != nil {
		return nil, fmt.Errorf("read price table for today: %w", err)
	}
	if !ok || len(today) == 0 {
		return nil, fmt.Errorf("price table for today unavailable: %w", model.ErrMissingInput)
	}
	combined := append([]float64(nil), today...)
	// Later days only extend the sequence while it stays contiguous:
	// a day-after table without tomorrow's would shift every index.
	for _, day := range []Day{Tomorrow, DayAfter} {
		table, ok, err := f.source.Prices(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("read price table for %s: %w", day, err)
		}
		if !ok {
			f.log.Debugf("price table for %s not available yet", day)
			break
		}
		combined = append(combined, table...)
	}
	return combined, nil
}
