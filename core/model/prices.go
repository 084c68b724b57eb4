package model

import "time"

// DayPrices is the per-step price table of one calendar day in
// ct/kWh. Date is local midnight; StepPrices holds one entry per grid
// step of the day.
type DayPrices struct {
	Date       time.Time `json:"date"`
	StepPrices []float64 `json:"step_prices"`
}
