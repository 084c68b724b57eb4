package analytics

import "github.com/CWILDMOUNTAIN/ha-wattwise/core/model"

// MaxDischargePossible reports, per step, how much power the house
// could additionally draw from the battery without worsening grid
// import. A step whose SoC is flat or rising, or that exports, is not
// headroom-constrained and gets the begin-of-step SoC as its ceiling;
// a step that already discharges gets the same; an idle, draining step
// gets 0. Values are clamped to [0, min(maxDischargeKW, SoC)].
func MaxDischargePossible(initialSoCKWh float64, entries []model.ScheduleEntry, maxDischargeKW float64) []float64 {
	const eps = 1e-9
	out := make([]float64, len(entries))
	soc := initialSoCKWh
	for i, e := range entries {
		var v float64
		switch {
		case e.SoCKWh >= soc-eps || e.ExportKW > eps:
			v = soc
		case e.DischargeKW > eps:
			v = soc
		default:
			v = 0
		}
		if v > maxDischargeKW {
			v = maxDischargeKW
		}
		if v > soc {
			v = soc
		}
		if v < 0 {
			v = 0
		}
		out[i] = v
		soc = e.SoCKWh
	}
	return out
}
