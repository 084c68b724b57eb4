package model

import "time"

// ScheduleEntry is the optimizer's decision for one grid step.
// All powers are averages over the step in kW; SoCKWh is the state of
// charge after the step.
type ScheduleEntry struct {
	Time          time.Time `json:"time"`
	ChargeSolarKW float64   `json:"charge_solar_kw"`
	ChargeGridKW  float64   `json:"charge_grid_kw"`
	DischargeKW   float64   `json:"discharge_kw"`
	ExportKW      float64   `json:"export_kw"`
	GridImportKW  float64   `json:"grid_import_kw"`
	ConsumptionKW float64   `json:"consumption_kw"`
	SolarKW       float64   `json:"solar_kw"`
	SoCKWh        float64   `json:"soc_kwh"`
	FullCharge    bool      `json:"full_charge"`
}

// Schedule is the complete dispatch plan produced by one solver call.
// It is replaced atomically and read-only downstream.
type Schedule struct {
	Anchor        time.Time       `json:"anchor"`
	StepMinutes   int             `json:"step_minutes"`
	InitialSoCKWh float64         `json:"initial_soc_kwh"`
	Entries       []ScheduleEntry `json:"entries"`
	// PlanCostCt is the forecast grid cost of the plan: import cost
	// minus export revenue over the horizon, in ct.
	PlanCostCt float64 `json:"plan_cost_ct"`
}

// StepHours returns the step duration as a fraction of an hour.
func (s Schedule) StepHours() float64 {
	return float64(s.StepMinutes) / 60
}

// ChargeSession summarizes the contiguous grid-charging run that
// starts at the first step of the schedule.
type ChargeSession struct {
	EnergyKWh float64       `json:"energy_kwh"`
	Duration  time.Duration `json:"duration"`
}

// ChargeSession aggregates grid-charge energy and duration over the
// leading steps with positive grid charge. An idle first step yields
// a zero session.
func (s Schedule) ChargeSession() ChargeSession {
	var cs ChargeSession
	dt := s.StepHours()
	for _, e := range s.Entries {
		if e.ChargeGridKW <= 0 {
			break
		}
		cs.EnergyKWh += e.ChargeGridKW * dt
		cs.Duration += time.Duration(s.StepMinutes) * time.Minute
	}
	return cs
}

// SoCBefore returns the state of charge at the beginning of step t.
func (s Schedule) SoCBefore(t int) float64 {
	if t <= 0 {
		return s.InitialSoCKWh
	}
	return s.Entries[t-1].SoCKWh
}
