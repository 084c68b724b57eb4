package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/analytics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/forecast"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/metrics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/optimizer"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/timegrid"
)

// ErrBusy reports that a trigger arrived while a run was in flight.
// The trigger is dropped, never queued behind the running pipeline.
var ErrBusy = errors.New("dispatch run already in flight")

// DeviceSource supplies the per-run battery parameters and the current
// state of charge. Absent readings wrap model.ErrMissingInput.
type DeviceSource interface {
	Parameters(ctx context.Context) (model.DeviceParameters, error)
	StateOfCharge(ctx context.Context) (float64, error)
}

// OutputSink receives the assembled output channels of a successful
// run.
type OutputSink interface {
	Publish(ctx context.Context, channels []model.Channel) error
}

// Config holds the grid and pipeline settings of the runner.
type Config struct {
	StepMinutes   int           `json:"step_minutes" koanf:"step_minutes"`
	HorizonSteps  int           `json:"horizon_steps" koanf:"horizon_steps"`
	RetentionDays int           `json:"retention_days" koanf:"retention_days"`
	SolveTimeout  time.Duration `json:"solve_timeout" koanf:"solve_timeout"`
}

func (c *Config) SetDefaults() {
	if c.StepMinutes == 0 {
		c.StepMinutes = 60
	}
	if c.HorizonSteps == 0 {
		c.HorizonSteps = 48
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 7
	}
	if c.SolveTimeout == 0 {
		c.SolveTimeout = 2 * time.Minute
	}
}

// Deps bundles the collaborators a Runner orchestrates.
type Deps struct {
	Device      DeviceSource
	Consumption *forecast.ConsumptionForecaster
	Solar       *forecast.SolarForecaster
	Price       *forecast.PriceForecaster
	Optimizer   *optimizer.Optimizer
	Cheap       *analytics.Finder
	Expensive   *analytics.Finder
	Sinks       []OutputSink
	Metrics     metrics.Sink
	Log         logger.Logger
}

// Result is the outcome of one dispatch run.
type Result struct {
	RunID         string
	Status        model.RunStatus
	Schedule      model.Schedule
	Horizon       int
	SolveDuration time.Duration
	Err           error
}

// Runner executes the dispatch pipeline: forecasts, MILP solve,
// analytics, output publication. At most one run is in flight at a
// time.
type Runner struct {
	cfg  Config
	deps Deps
	mu   sync.Mutex
}

func New(cfg Config, deps Deps) (*Runner, error) {
	cfg.SetDefaults()
	if _, err := timegrid.New(cfg.StepMinutes, cfg.HorizonSteps); err != nil {
		return nil, fmt.Errorf("runner config: %w", err)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopSink{}
	}
	if deps.Log == nil {
		deps.Log = logger.NopLogger{}
	}
	return &Runner{cfg: cfg, deps: deps}, nil
}

// Run executes one dispatch run anchored at now. It returns ErrBusy
// when a run is already in flight; every other failure is folded into
// the Result so the host can log and wait for the next trigger.
func (r *Runner) Run(ctx context.Context, now time.Time) (Result, error) {
	if !r.mu.TryLock() {
		r.deps.Log.Warnf("trigger dropped: run already in flight")
		return Result{}, ErrBusy
	}
	defer r.mu.Unlock()

	start := time.Now()
	res := r.run(ctx, uuid.NewString(), now)

	ev := metrics.RunEvent{
		RunID:         res.RunID,
		Status:        res.Status,
		Start:         start,
		Duration:      time.Since(start),
		SolveDuration: res.SolveDuration,
		HorizonSteps:  res.Horizon,
		PlanCostCt:    res.Schedule.PlanCostCt,
	}
	if res.Err != nil {
		ev.Err = res.Err.Error()
	}
	if err := r.deps.Metrics.RecordRun(ev); err != nil {
		r.deps.Log.Warnf("run %s: metrics record failed: %v", res.RunID, err)
	}
	return res, nil
}

func (r *Runner) run(ctx context.Context, runID string, now time.Time) Result {
	res := Result{RunID: runID}
	log := r.deps.Log

	// The grid is rebuilt per run: its horizon shrinks as forecasters
	// run out of data and must start fresh each time.
	grid, err := timegrid.New(r.cfg.StepMinutes, r.cfg.HorizonSteps)
	if err != nil {
		return r.abort(res, err)
	}
	anchor := grid.Align(now)

	dev, err := r.deps.Device.Parameters(ctx)
	if err != nil {
		return r.abort(res, fmt.Errorf("device parameters: %w", err))
	}
	soc, err := r.deps.Device.StateOfCharge(ctx)
	if err != nil {
		return r.abort(res, fmt.Errorf("state of charge: %w", err))
	}

	cons, err := r.deps.Consumption.Forecast(ctx, grid, now, r.cfg.RetentionDays)
	if err != nil {
		return r.abort(res, fmt.Errorf("consumption forecast: %w", err))
	}
	solar, err := r.deps.Solar.Forecast(ctx, grid, now)
	if err != nil {
		return r.abort(res, fmt.Errorf("solar forecast: %w", err))
	}
	price, err := r.deps.Price.Forecast(ctx, grid, now)
	if err != nil {
		return r.abort(res, fmt.Errorf("price forecast: %w", err))
	}

	// The effective horizon is the minimum of all truncation points.
	T := grid.Horizon()
	if T == 0 {
		return r.abort(res, fmt.Errorf("forecast horizon is empty: %w", model.ErrMissingInput))
	}
	res.Horizon = T
	cons, solar, price = cons[:T], solar[:T], price[:T]

	in := optimizer.Input{
		Anchor:        anchor,
		StepMinutes:   grid.StepMinutes(),
		InitialSoCKWh: soc,
		Consumption:   cons,
		Solar:         solar,
		Price:         price,
		Device:        dev,
	}
	solveCtx, cancel := context.WithTimeout(ctx, r.cfg.SolveTimeout)
	defer cancel()
	solveStart := time.Now()
	sched, err := r.deps.Optimizer.Solve(solveCtx, in)
	res.SolveDuration = time.Since(solveStart)
	if err != nil {
		res.Status = model.RunAbortedInfeasible
		res.Err = err
		log.Errorf("run %s: solve failed, previous schedule kept: %v", runID, err)
		return res
	}
	res.Schedule = sched
	res.Status = model.RunSucceeded

	maxDch := analytics.MaxDischargePossible(soc, sched.Entries, dev.MaxDischargeKW)

	days, err := r.deps.Price.Days(ctx, grid, now)
	if err != nil {
		log.Warnf("run %s: window prices unavailable: %v", runID, err)
	}
	var cheap, expensive analytics.Assignment
	if r.deps.Cheap != nil {
		cheap = r.deps.Cheap.Find(now, grid, days, dev.MaxPriceCt)
	}
	if r.deps.Expensive != nil {
		expensive = r.deps.Expensive.Find(now, grid, days, 0)
	}

	channels := buildChannels(sched, dev, maxDch, cheap, expensive, r.deps.Consumption.HistorySpan(now))
	for _, sink := range r.deps.Sinks {
		if err := sink.Publish(ctx, channels); err != nil {
			log.Errorf("run %s: publish failed: %v", runID, err)
		}
	}
	if err := r.deps.Metrics.RecordSchedule(runID, sched); err != nil {
		log.Warnf("run %s: schedule metrics failed: %v", runID, err)
	}

	log.Infof("run %s: schedule of %d steps published, plan cost %.1f ct", runID, T, sched.PlanCostCt)
	return res
}

func (r *Runner) abort(res Result, err error) Result {
	res.Status = model.RunAbortedMissingInput
	res.Err = err
	r.deps.Log.Errorf("run %s: aborted: %v", res.RunID, err)
	return res
}
