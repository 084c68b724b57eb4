package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// ErrInfeasible indicates that no dispatch plan satisfies the device
// and physical constraints for the given inputs.
var ErrInfeasible = errors.New("no feasible dispatch plan")

// Input carries everything one solve needs. All vectors must have the
// same length T; the schedule covers steps Anchor .. Anchor+T·step.
type Input struct {
	Anchor        time.Time
	StepMinutes   int
	InitialSoCKWh float64
	Consumption   []float64 // kW per step
	Solar         []float64 // kW per step
	Price         []float64 // ct/kWh per step
	Device        model.DeviceParameters
}

func (in Input) validate() error {
	T := len(in.Consumption)
	if T == 0 {
		return fmt.Errorf("empty horizon")
	}
	if len(in.Solar) != T || len(in.Price) != T {
		return fmt.Errorf("vector lengths differ: consumption %d, solar %d, price %d",
			T, len(in.Solar), len(in.Price))
	}
	if in.StepMinutes <= 0 {
		return fmt.Errorf("step minutes must be positive, got %d", in.StepMinutes)
	}
	return in.Device.Validate()
}

// Optimizer solves the dispatch MILP.
type Optimizer struct {
	cfg Config
	log logger.Logger
}

// New creates an Optimizer. The config should have defaults applied.
func New(cfg Config, log logger.Logger) *Optimizer {
	return &Optimizer{cfg: cfg, log: log}
}

// Solve returns the cost-optimal schedule for the input, or an error
// on any non-optimal terminal state. The previously published
// schedule is never touched here; the caller keeps it on failure.
func (o *Optimizer) Solve(ctx context.Context, in Input) (model.Schedule, error) {
	if err := in.validate(); err != nil {
		return model.Schedule{}, fmt.Errorf("optimizer input: %w", err)
	}

	start := time.Now()
	p := newProblem(in, o.cfg)
	x, err := branchAndBound(ctx, p, o.cfg.MaxNodes)
	if err != nil {
		return model.Schedule{}, err
	}
	o.log.Debugw("dispatch solved", map[string]any{
		"steps":    p.T,
		"duration": time.Since(start).String(),
	})

	return p.extract(in, x), nil
}

// extract converts a solution vector into the schedule, echoing the
// forecast inputs through and clamping solver noise at zero.
func (p *problem) extract(in Input, x []float64) model.Schedule {
	dt := float64(in.StepMinutes) / 60
	step := time.Duration(in.StepMinutes) * time.Minute
	entries := make([]model.ScheduleEntry, p.T)
	var cost float64
	for t := 0; t < p.T; t++ {
		e := model.ScheduleEntry{
			Time:          in.Anchor.Add(time.Duration(t) * step),
			GridImportKW:  clampNonNeg(x[p.iG(t)]),
			ChargeSolarKW: clampNonNeg(x[p.iChs(t)]),
			ChargeGridKW:  clampNonNeg(x[p.iChg(t)]),
			DischargeKW:   clampNonNeg(x[p.iDch(t)]),
			ExportKW:      clampNonNeg(x[p.iE(t)]),
			ConsumptionKW: in.Consumption[t],
			SolarKW:       in.Solar[t],
			SoCKWh:        x[p.iSoC(t)],
			FullCharge:    x[p.iFull(t)] > 0.5,
		}
		cost += in.Price[t]*e.GridImportKW*dt - in.Device.FeedInTariffCt*e.ExportKW*dt
		entries[t] = e
	}
	return model.Schedule{
		Anchor:        in.Anchor,
		StepMinutes:   in.StepMinutes,
		InitialSoCKWh: in.InitialSoCKWh,
		Entries:       entries,
		PlanCostCt:    cost,
	}
}

func clampNonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
