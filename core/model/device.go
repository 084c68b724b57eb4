package model

import "fmt"

// DeviceParameters describes the battery and tariff limits for one
// optimization run. Values may differ between runs but are immutable
// within one.
type DeviceParameters struct {
	// CapacityKWh is the total usable battery capacity.
	CapacityKWh float64 `json:"capacity_kwh"`
	// Efficiency is the round-trip efficiency in (0,1].
	Efficiency float64 `json:"efficiency"`
	// MaxChargeKW caps the combined solar and grid charge power.
	MaxChargeKW float64 `json:"max_charge_kw"`
	// MaxDischargeKW caps the discharge power.
	MaxDischargeKW float64 `json:"max_discharge_kw"`
	// LowerLimitKWh is the lowest state of charge the plan may reach.
	LowerLimitKWh float64 `json:"lower_limit_kwh"`
	// FeedInTariffCt is the export remuneration in ct/kWh.
	FeedInTariffCt float64 `json:"feed_in_tariff_ct"`
	// MaxPriceCt is the threshold above which a step disqualifies a
	// window from the cheap-window search, in ct/kWh.
	MaxPriceCt float64 `json:"max_price_ct"`
}

// Validate checks the physical plausibility of the parameters.
func (p DeviceParameters) Validate() error {
	if p.CapacityKWh <= 0 {
		return fmt.Errorf("capacity must be positive, got %.2f", p.CapacityKWh)
	}
	if p.Efficiency <= 0 || p.Efficiency > 1 {
		return fmt.Errorf("efficiency must be in (0,1], got %.2f", p.Efficiency)
	}
	if p.MaxChargeKW <= 0 {
		return fmt.Errorf("max charge rate must be positive, got %.2f", p.MaxChargeKW)
	}
	if p.MaxDischargeKW <= 0 {
		return fmt.Errorf("max discharge rate must be positive, got %.2f", p.MaxDischargeKW)
	}
	if p.LowerLimitKWh < 0 || p.LowerLimitKWh >= p.CapacityKWh {
		return fmt.Errorf("lower limit %.2f outside [0,%.2f)", p.LowerLimitKWh, p.CapacityKWh)
	}
	return nil
}
