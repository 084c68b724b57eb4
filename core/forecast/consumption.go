package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/store"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/timegrid"
)

// historyDocument is the persisted shape of the consumption history.
type historyDocument struct {
	Samples []model.HistorySample `json:"samples"`
}

// ConsumptionForecaster projects average consumption per time-of-day
// slot over the horizon. It owns the persisted history document for
// the duration of a run.
type ConsumptionForecaster struct {
	source   HistorySource
	store    store.Store
	entity   string
	storeKey string
	log      logger.Logger
}

// NewConsumptionForecaster builds a forecaster reading samples of
// entity from source and persisting merged history under storeKey.
func NewConsumptionForecaster(source HistorySource, st store.Store, entity, storeKey string, log logger.Logger) *ConsumptionForecaster {
	return &ConsumptionForecaster{source: source, store: st, entity: entity, storeKey: storeKey, log: log}
}

// Forecast returns the average-consumption vector for the current
// horizon. Persistence failures are logged and the run continues with
// in-memory history.
func (f *ConsumptionForecaster) Forecast(ctx context.Context, grid *timegrid.Grid, now time.Time, retentionDays int) ([]float64, error) {
	samples := f.loadHistory()
	cutoff := now.AddDate(0, 0, -retentionDays)

	retained := samples[:0]
	last := cutoff
	for _, s := range samples {
		if s.Time.Before(cutoff) {
			continue
		}
		retained = append(retained, s)
		if s.Time.After(last) {
			last = s.Time
		}
	}

	fresh := f.fetchRange(ctx, last, now, grid.Step())
	retained = append(retained, fresh...)

	if err := f.store.Save(f.storeKey, historyDocument{Samples: retained}); err != nil {
		f.log.Warnf("persist consumption history: %v", err)
	}

	// Bucket by time-of-day slot in the local time of the run.
	loc := now.Location()
	sums := make([]float64, grid.SlotsPerDay())
	counts := make([]int, grid.SlotsPerDay())
	for _, s := range retained {
		v, ok := s.Value()
		if !ok {
			continue
		}
		slot := grid.SlotOf(s.Time.In(loc))
		sums[slot] += v
		counts[slot]++
	}

	anchor := grid.Align(now)
	out := make([]float64, grid.Horizon())
	for t := range out {
		slot := grid.SlotOf(grid.StepTime(anchor, t))
		if counts[slot] > 0 {
			out[t] = sums[slot] / float64(counts[slot])
		}
	}
	return out, nil
}

// HistorySpan returns the retained sample span, for reporting.
func (f *ConsumptionForecaster) HistorySpan(now time.Time) time.Duration {
	samples := f.loadHistory()
	if len(samples) == 0 {
		return 0
	}
	oldest := samples[0].Time
	for _, s := range samples[1:] {
		if s.Time.Before(oldest) {
			oldest = s.Time
		}
	}
	return now.Sub(oldest)
}

func (f *ConsumptionForecaster) loadHistory() []model.HistorySample {
	var doc historyDocument
	if err := f.store.Load(f.storeKey, &doc); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			f.log.Warnf("load consumption history: %v", err)
		}
		return nil
	}
	return doc.Samples
}

// fetchRange pulls new samples in step-sized chunks. A failed chunk
// is logged and skipped; the remaining chunks are still fetched.
func (f *ConsumptionForecaster) fetchRange(ctx context.Context, start, end time.Time, chunk time.Duration) []model.HistorySample {
	var out []model.HistorySample
	for cur := start; cur.Before(end); {
		next := cur.Add(chunk)
		if next.After(end) {
			next = end
		}
		batch, err := f.source.Fetch(ctx, f.entity, cur, next)
		if err != nil {
			f.log.Errorf("fetch history %s [%s, %s): %v", f.entity, cur.Format(time.RFC3339), next.Format(time.RFC3339), err)
		} else {
			out = append(out, batch...)
		}
		cur = next
	}
	return out
}
