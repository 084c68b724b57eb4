package runner

import (
	"fmt"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/analytics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// Published channel names. Sinks map these onto their own entity or
// topic conventions.
const (
	ChanChargeSolar        = "charge_from_solar"
	ChanChargeGrid         = "charge_from_grid"
	ChanDischarge          = "discharge"
	ChanGridExport         = "grid_export"
	ChanGridImport         = "grid_import"
	ChanSoC                = "soc"
	ChanSoCPercent         = "soc_percent"
	ChanFullCharge         = "full_charge"
	ChanConsumption        = "consumption_forecast"
	ChanSolar              = "solar_forecast"
	ChanMaxDischarge       = "max_discharge_possible"
	ChanChargingDesired    = "charging_desired"
	ChanDischargingDesired = "discharging_desired"
	ChanHorizonSteps       = "forecast_horizon_steps"
	ChanHorizonHours       = "forecast_horizon_hours"
	ChanHistoryDays        = "history_horizon_days"
	ChanSessionEnergy      = "charge_session_energy"
	ChanSessionDuration    = "charge_session_duration"
	ChanPlanCost           = "plan_cost"
)

const windowHours = 8

func windowChannelName(kind analytics.Kind, h int) string {
	if kind == analytics.MostExpensive {
		return fmt.Sprintf("most_expensive_window_%dh", h)
	}
	return fmt.Sprintf("cheapest_window_%dh", h)
}

func buildChannels(sched model.Schedule, dev model.DeviceParameters,
	maxDch []float64, cheap, expensive analytics.Assignment, historySpan time.Duration) []model.Channel {

	T := len(sched.Entries)
	series := func(pick func(model.ScheduleEntry) float64) []model.Point {
		pts := make([]model.Point, T)
		for i, e := range sched.Entries {
			pts[i] = model.Point{Time: e.Time, Value: pick(e)}
		}
		return pts
	}
	states := func(pick func(model.ScheduleEntry) bool) []model.BoolPoint {
		pts := make([]model.BoolPoint, T)
		for i, e := range sched.Entries {
			pts[i] = model.BoolPoint{Time: e.Time, On: pick(e)}
		}
		return pts
	}

	channels := []model.Channel{
		model.NumericChannel(ChanChargeSolar, "kW", series(func(e model.ScheduleEntry) float64 { return e.ChargeSolarKW })),
		model.NumericChannel(ChanChargeGrid, "kW", series(func(e model.ScheduleEntry) float64 { return e.ChargeGridKW })),
		model.NumericChannel(ChanDischarge, "kW", series(func(e model.ScheduleEntry) float64 { return e.DischargeKW })),
		model.NumericChannel(ChanGridExport, "kW", series(func(e model.ScheduleEntry) float64 { return e.ExportKW })),
		model.NumericChannel(ChanGridImport, "kW", series(func(e model.ScheduleEntry) float64 { return e.GridImportKW })),
		model.NumericChannel(ChanSoC, "kWh", series(func(e model.ScheduleEntry) float64 { return e.SoCKWh })),
		model.NumericChannel(ChanConsumption, "kW", series(func(e model.ScheduleEntry) float64 { return e.ConsumptionKW })),
		model.NumericChannel(ChanSolar, "kW", series(func(e model.ScheduleEntry) float64 { return e.SolarKW })),
		model.BinaryChannel(ChanFullCharge, states(func(e model.ScheduleEntry) bool { return e.FullCharge })),
		model.BinaryChannel(ChanChargingDesired, states(func(e model.ScheduleEntry) bool { return e.ChargeGridKW > 0 })),
		model.BinaryChannel(ChanDischargingDesired, states(func(e model.ScheduleEntry) bool { return e.DischargeKW > 0 })),
	}

	if dev.CapacityKWh > 0 {
		pct := make([]model.Point, T)
		for i, e := range sched.Entries {
			pct[i] = model.Point{Time: e.Time, Value: e.SoCKWh / dev.CapacityKWh * 100}
		}
		channels = append(channels, model.NumericChannel(ChanSoCPercent, "%", pct))
	}

	dchPts := make([]model.Point, len(maxDch))
	for i, v := range maxDch {
		dchPts[i] = model.Point{Time: sched.Entries[i].Time, Value: v}
	}
	channels = append(channels, model.NumericChannel(ChanMaxDischarge, "kW", dchPts))

	for h := 1; h <= windowHours; h++ {
		for _, w := range []struct {
			kind analytics.Kind
			a    analytics.Assignment
		}{{analytics.Cheapest, cheap}, {analytics.MostExpensive, expensive}} {
			pts := make([]model.BoolPoint, T)
			for i, e := range sched.Entries {
				pts[i] = model.BoolPoint{Time: e.Time, On: w.a.Contains(h, e.Time)}
			}
			channels = append(channels, model.BinaryChannel(windowChannelName(w.kind, h), pts))
		}
	}

	session := sched.ChargeSession()
	anchor := sched.Anchor
	scalar := func(name, unit string, v float64) model.Channel {
		return model.NumericChannel(name, unit, []model.Point{{Time: anchor, Value: v}})
	}
	channels = append(channels,
		scalar(ChanHorizonSteps, "", float64(T)),
		scalar(ChanHorizonHours, "h", float64(T)*sched.StepHours()),
		scalar(ChanHistoryDays, "d", historySpan.Hours()/24),
		scalar(ChanSessionEnergy, "kWh", session.EnergyKWh),
		scalar(ChanSessionDuration, "h", session.Duration.Hours()),
		scalar(ChanPlanCost, "ct", sched.PlanCostCt),
	)
	return channels
}
