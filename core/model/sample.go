package model

import (
	"strconv"
	"time"
)

// HistorySample is one raw sensor observation. The state is kept as
// the raw string reported by the platform; non-numeric states
// ("unknown", "unavailable") are skipped at aggregation time so that
// persisted history reproduces exactly what was fetched.
type HistorySample struct {
	Time  time.Time `json:"time"`
	State string    `json:"state"`
}

// Value parses the sample state as a float. The second return value
// reports whether the state was numeric.
func (s HistorySample) Value() (float64, bool) {
	v, err := strconv.ParseFloat(s.State, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
