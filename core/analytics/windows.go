package analytics

import (
	"errors"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/store"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/timegrid"
)

const dateLayout = "2006-01-02"

// Kind selects which extreme of the price curve a Finder looks for.
type Kind int

const (
	Cheapest Kind = iota
	MostExpensive
)

// Assignment holds, per window length in hours, the absolute step
// timestamps belonging to the selected window of every scanned day.
type Assignment struct {
	ForecastDate string              `json:"forecast_date"`
	Windows      map[int][]time.Time `json:"windows"`
}

// Contains reports whether t belongs to the window of length h.
func (a Assignment) Contains(h int, t time.Time) bool {
	for _, w := range a.Windows[h] {
		if w.Equal(t) {
			return true
		}
	}
	return false
}

// Finder locates the cheapest or most expensive contiguous window of
// each length 1..maxHours per calendar day, and keeps the published
// result stable within a day through persistence: a fresh search is
// persisted once per day after cutoffHour, and a persisted result no
// older than a day is reused before the cutoff or after the day's
// persist already happened.
type Finder struct {
	store      store.Store
	key        string
	kind       Kind
	cutoffHour int
	maxHours   int
	log        logger.Logger
}

func NewFinder(st store.Store, key string, kind Kind, cutoffHour int, log logger.Logger) *Finder {
	return &Finder{store: st, key: key, kind: kind, cutoffHour: cutoffHour, maxHours: 8, log: log}
}

// Find scans the given per-day price tables. maxPriceCt is the
// threshold above which a step disqualifies its window from the cheap
// search; it is ignored for the expensive search.
func (f *Finder) Find(now time.Time, grid *timegrid.Grid, days []model.DayPrices, maxPriceCt float64) Assignment {
	today := now.Format(dateLayout)

	var prev Assignment
	havePrev := false
	if err := f.store.Load(f.key, &prev); err == nil {
		havePrev = true
	} else if !errors.Is(err, store.ErrNotFound) {
		f.log.Warnf("window assignment %s: load failed, recomputing: %v", f.key, err)
	}
	// Reuse a pinned assignment only while it is fresh: computed
	// today, or yesterday and the new day-ahead prices are not out
	// yet. Anything older is recomputed.
	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	if havePrev && (prev.ForecastDate == today ||
		(now.Hour() < f.cutoffHour && prev.ForecastDate == yesterday)) {
		return prev
	}

	fresh := Assignment{ForecastDate: today, Windows: make(map[int][]time.Time)}
	for h := 1; h <= f.maxHours; h++ {
		steps := h * grid.StepsPerHour()
		for _, day := range days {
			start, ok := f.pick(day.StepPrices, steps, maxPriceCt)
			if !ok {
				continue
			}
			for s := start; s < start+steps; s++ {
				fresh.Windows[h] = append(fresh.Windows[h], grid.StepTime(day.Date, s))
			}
		}
	}

	if now.Hour() >= f.cutoffHour && (!havePrev || prev.ForecastDate != today) {
		if err := f.store.Save(f.key, fresh); err != nil {
			f.log.Warnf("window assignment %s: save failed: %v", f.key, err)
		}
	}
	return fresh
}

func (f *Finder) pick(prices []float64, steps int, maxPriceCt float64) (int, bool) {
	if f.kind == MostExpensive {
		return mostExpensiveWindow(prices, steps)
	}
	return cheapestWindow(prices, steps, maxPriceCt)
}

// cheapestWindow returns the start index of the window of the given
// length with the minimal price sum, skipping windows that contain a
// step above maxPrice. Ties resolve to the earliest start.
func cheapestWindow(prices []float64, steps int, maxPrice float64) (int, bool) {
	best, bestSum, found := 0, 0.0, false
	for start := 0; start+steps <= len(prices); start++ {
		sum, blocked := 0.0, false
		for _, p := range prices[start : start+steps] {
			if p > maxPrice {
				blocked = true
				break
			}
			sum += p
		}
		if blocked {
			continue
		}
		if !found || sum < bestSum {
			best, bestSum, found = start, sum, true
		}
	}
	return best, found
}

// mostExpensiveWindow is the unfiltered maximum-sum counterpart.
func mostExpensiveWindow(prices []float64, steps int) (int, bool) {
	best, bestSum, found := 0, 0.0, false
	for start := 0; start+steps <= len(prices); start++ {
		sum := 0.0
		for _, p := range prices[start : start+steps] {
			sum += p
		}
		if !found || sum > bestSum {
			best, bestSum, found = start, sum, true
		}
	}
	return best, found
}
