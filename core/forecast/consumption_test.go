package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/store"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/timegrid"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/logger"
)

type fakeHistorySource struct {
	samples []model.HistorySample
	calls   int
}

func (f *fakeHistorySource) Fetch(_ context.Context, _ string, start, end time.Time) ([]model.HistorySample, error) {
	f.calls++
	var out []model.HistorySample
	for _, s := range f.samples {
		if !s.Time.Before(start) && s.Time.Before(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

type memStore struct {
	docs    map[string][]byte
	saveErr error
	loadErr error
}

func newMemStore() *memStore { return &memStore{docs: map[string][]byte{}} }

func (m *memStore) Load(key string, doc any) error {
	if m.loadErr != nil {
		return m.loadErr
	}
	raw, ok := m.docs[key]
	if !ok {
		return store.ErrNotFound
	}
	return json.Unmarshal(raw, doc)
}

func (m *memStore) Save(key string, doc any) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[key] = raw
	return nil
}

func mustGrid(t *testing.T, stepMinutes, horizon int) *timegrid.Grid {
	t.Helper()
	g, err := timegrid.New(stepMinutes, horizon)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	return g
}

func TestConsumptionSlotAverages(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeHistorySource{samples: []model.HistorySample{
		{Time: now.Add(-24 * time.Hour), State: "2.0"},      // slot 12
		{Time: now.Add(-48 * time.Hour), State: "4.0"},      // slot 12
		{Time: now.Add(-23 * time.Hour), State: "1.5"},      // slot 13
		{Time: now.Add(-22 * time.Hour), State: "unknown"},  // dropped
		{Time: now.Add(-21 * time.Hour), State: "not-a-no"}, // dropped
	}}
	f := NewConsumptionForecaster(src, newMemStore(), "sensor.house", "history", logger.NopLogger{})
	g := mustGrid(t, 60, 3)
	out, err := f.Forecast(context.Background(), g, now, 7)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("length %d", len(out))
	}
	if out[0] != 3.0 { // mean of 2.0 and 4.0 in the 12:00 slot
		t.Fatalf("slot 12 mean %.2f", out[0])
	}
	if out[1] != 1.5 {
		t.Fatalf("slot 13 mean %.2f", out[1])
	}
	if out[2] != 0 { // no data for the 14:00 slot
		t.Fatalf("empty slot gave %.2f", out[2])
	}
}

func TestConsumptionRetentionPruning(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	st := newMemStore()
	old := model.HistorySample{Time: now.AddDate(0, 0, -10), State: "9.0"}
	kept := model.HistorySample{Time: now.Add(-24 * time.Hour), State: "1.0"}
	doc, _ := json.Marshal(historyDocument{Samples: []model.HistorySample{old, kept}})
	st.docs["history"] = doc

	f := NewConsumptionForecaster(&fakeHistorySource{}, st, "sensor.house", "history", logger.NopLogger{})
	g := mustGrid(t, 60, 1)
	out, err := f.Forecast(context.Background(), g, now, 7)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if out[0] != 1.0 {
		t.Fatalf("pruned sample leaked into average: %.2f", out[0])
	}

	var saved historyDocument
	if err := st.Load("history", &saved); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(saved.Samples) != 1 || saved.Samples[0].State != "1.0" {
		t.Fatalf("persisted history %#v", saved.Samples)
	}
}

func TestConsumptionRoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeHistorySource{samples: []model.HistorySample{
		{Time: now.Add(-3 * time.Hour), State: "2.5"},
		{Time: now.Add(-2 * time.Hour), State: "unavailable"},
	}}
	st := newMemStore()
	f := NewConsumptionForecaster(src, st, "sensor.house", "history", logger.NopLogger{})
	g := mustGrid(t, 60, 1)
	if _, err := f.Forecast(context.Background(), g, now, 7); err != nil {
		t.Fatalf("forecast: %v", err)
	}
	var saved historyDocument
	if err := st.Load("history", &saved); err != nil {
		t.Fatalf("reload: %v", err)
	}
	// Non-numeric samples are persisted untouched; only aggregation
	// skips them.
	if len(saved.Samples) != 2 {
		t.Fatalf("saved %d samples", len(saved.Samples))
	}
}

func TestConsumptionPersistenceFailureIsNonFatal(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	st := newMemStore()
	st.saveErr = errors.New("disk full")
	st.loadErr = errors.New("corrupt")
	src := &fakeHistorySource{samples: []model.HistorySample{
		{Time: now.Add(-1 * time.Hour), State: "3.0"},
	}}
	f := NewConsumptionForecaster(src, st, "sensor.house", "history", logger.NopLogger{})
	g := mustGrid(t, 60, 2)
	out, err := f.Forecast(context.Background(), g, now, 7)
	if err != nil {
		t.Fatalf("persistence errors must not fail the run: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("length %d", len(out))
	}
}

func TestConsumptionFetchChunking(t *testing.T) {
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)
	src := &fakeHistorySource{}
	f := NewConsumptionForecaster(src, newMemStore(), "sensor.house", "history", logger.NopLogger{})
	g := mustGrid(t, 60, 1)
	if _, err := f.Forecast(context.Background(), g, now, 1); err != nil {
		t.Fatalf("forecast: %v", err)
	}
	// One day of history at one-hour steps means 24 chunked fetches.
	if src.calls != 24 {
		t.Fatalf("fetch calls %d", src.calls)
	}
}
