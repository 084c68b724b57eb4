package runner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/analytics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/forecast"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/optimizer"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/store"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/logger"
)

type memStore struct {
	docs map[string][]byte
}

func newMemStore() *memStore { return &memStore{docs: make(map[string][]byte)} }

func (m *memStore) Load(key string, doc any) error {
	raw, ok := m.docs[key]
	if !ok {
		return store.ErrNotFound
	}
	return json.Unmarshal(raw, doc)
}

func (m *memStore) Save(key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[key] = raw
	return nil
}

type fakeDevice struct {
	dev    model.DeviceParameters
	soc    float64
	socErr error
	block  chan struct{} // when set, Parameters blocks until closed
	inside chan struct{} // closed once Parameters has been entered
}

func (f *fakeDevice) Parameters(context.Context) (model.DeviceParameters, error) {
	if f.inside != nil {
		close(f.inside)
		f.inside = nil
	}
	if f.block != nil {
		<-f.block
	}
	return f.dev, nil
}

func (f *fakeDevice) StateOfCharge(context.Context) (float64, error) {
	return f.soc, f.socErr
}

// fakeHistory yields one 1.0 kW sample per fetched chunk, producing a
// flat 1 kW consumption forecast.
type fakeHistory struct{}

func (fakeHistory) Fetch(_ context.Context, _ string, start, _ time.Time) ([]model.HistorySample, error) {
	return []model.HistorySample{{Time: start, State: "1.0"}}, nil
}

type fakeSolar struct {
	points map[forecast.Day][]forecast.SolarPoint
}

func (f fakeSolar) SolarPoints(_ context.Context, day forecast.Day) ([]forecast.SolarPoint, bool, error) {
	pts, ok := f.points[day]
	return pts, ok, nil
}

type fakePrices struct {
	tables map[forecast.Day][]float64
}

func (f fakePrices) Prices(_ context.Context, day forecast.Day) ([]float64, bool, error) {
	t, ok := f.tables[day]
	return t, ok, nil
}

type captureSink struct {
	mu       sync.Mutex
	payloads [][]model.Channel
}

func (c *captureSink) Publish(_ context.Context, channels []model.Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, channels)
	return nil
}

func (c *captureSink) byName() map[string]model.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) == 0 {
		return nil
	}
	out := make(map[string]model.Channel)
	for _, ch := range c.payloads[len(c.payloads)-1] {
		out[ch.Name] = ch
	}
	return out
}

func hourly(v float64) []float64 {
	p := make([]float64, 24)
	for i := range p {
		p[i] = v
	}
	return p
}

// testRunner wires a runner against in-memory fakes: flat prices for
// today only, solar covering the whole day, hourly steps.
func testRunner(t *testing.T, dev *fakeDevice, sink *captureSink, cfg Config) *Runner {
	t.Helper()
	log := logger.NopLogger{}
	st := newMemStore()

	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	solar := fakeSolar{points: map[forecast.Day][]forecast.SolarPoint{
		forecast.Today: {
			{Time: day, PowerKW: 0},
			{Time: day.Add(23 * time.Hour), PowerKW: 0},
		},
	}}
	prices := fakePrices{tables: map[forecast.Day][]float64{
		forecast.Today: hourly(0.30),
	}}

	ocfg := optimizer.Config{}
	ocfg.SetDefaults()

	r, err := New(cfg, Deps{
		Device:      dev,
		Consumption: forecast.NewConsumptionForecaster(fakeHistory{}, st, "sensor.load", "history", log),
		Solar:       forecast.NewSolarForecaster(solar, log),
		Price:       forecast.NewPriceForecaster(prices, log),
		Optimizer:   optimizer.New(ocfg, log),
		Cheap:       analytics.NewFinder(st, "cheap", analytics.Cheapest, 16, log),
		Expensive:   analytics.NewFinder(st, "expensive", analytics.MostExpensive, 16, log),
		Sinks:       []OutputSink{sink},
		Log:         log,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func defaultDevice() *fakeDevice {
	return &fakeDevice{
		dev: model.DeviceParameters{
			CapacityKWh:    10,
			Efficiency:     0.9,
			MaxChargeKW:    5,
			MaxDischargeKW: 5,
			LowerLimitKWh:  1,
			FeedInTariffCt: 7,
			MaxPriceCt:     40,
		},
		soc: 5,
	}
}

func TestRunPublishesSchedule(t *testing.T) {
	sink := &captureSink{}
	r := testRunner(t, defaultDevice(), sink, Config{StepMinutes: 60, HorizonSteps: 6})
	now := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)

	res, err := r.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != model.RunSucceeded {
		t.Fatalf("status %v, err %v", res.Status, res.Err)
	}
	if res.Horizon != 6 || len(res.Schedule.Entries) != 6 {
		t.Fatalf("horizon %d, entries %d", res.Horizon, len(res.Schedule.Entries))
	}

	chans := sink.byName()
	if chans == nil {
		t.Fatalf("nothing published")
	}
	for _, name := range []string{
		ChanChargeSolar, ChanChargeGrid, ChanDischarge, ChanGridExport,
		ChanGridImport, ChanSoC, ChanSoCPercent, ChanFullCharge,
		ChanConsumption, ChanSolar, ChanMaxDischarge, ChanChargingDesired,
		ChanDischargingDesired, ChanHorizonSteps, ChanHorizonHours,
		ChanSessionEnergy, ChanSessionDuration, ChanPlanCost,
		"cheapest_window_1h", "cheapest_window_8h",
		"most_expensive_window_1h", "most_expensive_window_8h",
	} {
		if _, ok := chans[name]; !ok {
			t.Fatalf("channel %s missing", name)
		}
	}
	if hz := chans[ChanHorizonSteps]; hz.Value != 6 {
		t.Fatalf("horizon channel %v", hz.Value)
	}
	if hz := chans[ChanHorizonHours]; hz.Value != 6 {
		t.Fatalf("horizon hours %v", hz.Value)
	}
	if soc := chans[ChanSoC]; len(soc.Series) != 6 {
		t.Fatalf("soc series length %d", len(soc.Series))
	}
}

func TestRunTruncatesToShortestForecast(t *testing.T) {
	// Price data for today only, 24 hourly entries, started at hour 20:
	// the horizon shrinks from 48 to 4 before the solve.
	sink := &captureSink{}
	r := testRunner(t, defaultDevice(), sink, Config{StepMinutes: 60, HorizonSteps: 48})
	now := time.Date(2026, 5, 10, 20, 0, 0, 0, time.UTC)

	res, err := r.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != model.RunSucceeded {
		t.Fatalf("status %v, err %v", res.Status, res.Err)
	}
	if res.Horizon != 4 {
		t.Fatalf("horizon %d, want 4", res.Horizon)
	}
	if got := len(res.Schedule.Entries); got != 4 {
		t.Fatalf("entries %d", got)
	}
}

func TestRunAbortsWithoutSolarData(t *testing.T) {
	sink := &captureSink{}
	dev := defaultDevice()
	r := testRunner(t, dev, sink, Config{StepMinutes: 60, HorizonSteps: 6})
	// Swap in a solar source with no data at all.
	r.deps.Solar = forecast.NewSolarForecaster(fakeSolar{}, logger.NopLogger{})

	res, err := r.Run(context.Background(), time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != model.RunAbortedMissingInput {
		t.Fatalf("status %v", res.Status)
	}
	if !errors.Is(res.Err, model.ErrMissingInput) {
		t.Fatalf("err %v", res.Err)
	}
	if len(sink.payloads) != 0 {
		t.Fatalf("published despite abort")
	}
}

func TestRunReportsInfeasible(t *testing.T) {
	sink := &captureSink{}
	dev := defaultDevice()
	dev.dev.MaxChargeKW = 0.1
	dev.soc = 0 // below the lower limit and unreachable
	r := testRunner(t, dev, sink, Config{StepMinutes: 60, HorizonSteps: 4})

	res, err := r.Run(context.Background(), time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != model.RunAbortedInfeasible {
		t.Fatalf("status %v, err %v", res.Status, res.Err)
	}
	if !errors.Is(res.Err, optimizer.ErrInfeasible) {
		t.Fatalf("err %v", res.Err)
	}
	if len(sink.payloads) != 0 {
		t.Fatalf("published despite infeasible solve")
	}
}

func TestNewDefaultsOptionalCollaborators(t *testing.T) {
	r, err := New(Config{}, Deps{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if r.deps.Metrics == nil {
		t.Fatal("metrics sink not defaulted")
	}
	if r.deps.Log == nil {
		t.Fatal("logger not defaulted")
	}
	r.deps.Log.Warnf("must not panic")
}

func TestRunDropsConcurrentTrigger(t *testing.T) {
	sink := &captureSink{}
	dev := defaultDevice()
	dev.block = make(chan struct{})
	dev.inside = make(chan struct{})
	inside := dev.inside
	r := testRunner(t, dev, sink, Config{StepMinutes: 60, HorizonSteps: 4})
	now := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)

	done := make(chan Result, 1)
	go func() {
		res, _ := r.Run(context.Background(), now)
		done <- res
	}()
	<-inside

	if _, err := r.Run(context.Background(), now); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(dev.block)
	res := <-done
	if res.Status != model.RunSucceeded {
		t.Fatalf("first run failed: %v %v", res.Status, res.Err)
	}
}

func TestRunChargeSessionChannel(t *testing.T) {
	// A cheap first hour before an expensive rest and an empty battery
	// forces grid charging starting at step 0.
	sink := &captureSink{}
	dev := defaultDevice()
	dev.soc = 1
	r := testRunner(t, dev, sink, Config{StepMinutes: 60, HorizonSteps: 4})

	prices := hourly(0.60)
	prices[10] = 0.05
	r.deps.Price = forecast.NewPriceForecaster(fakePrices{tables: map[forecast.Day][]float64{
		forecast.Today: prices,
	}}, logger.NopLogger{})

	res, err := r.Run(context.Background(), time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != model.RunSucceeded {
		t.Fatalf("status %v err %v", res.Status, res.Err)
	}
	if res.Schedule.Entries[0].ChargeGridKW <= 0 {
		t.Fatalf("expected grid charging at the cheap first step")
	}

	chans := sink.byName()
	session := res.Schedule.ChargeSession()
	if got := chans[ChanSessionEnergy].Value; got != session.EnergyKWh || got <= 0 {
		t.Fatalf("session energy channel %v, want %v", got, session.EnergyKWh)
	}
	if got := chans[ChanSessionDuration].Value; got != session.Duration.Hours() {
		t.Fatalf("session duration channel %v", got)
	}
}
