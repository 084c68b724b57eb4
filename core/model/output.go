package model

import "time"

// Point is one value of a numeric forecast series.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// BoolPoint is one value of a binary forecast series.
type BoolPoint struct {
	Time time.Time `json:"time"`
	On   bool      `json:"on"`
}

// ChannelKind tags the variant carried by a Channel.
type ChannelKind int

const (
	ChannelNumeric ChannelKind = iota
	ChannelBinary
)

// Channel is one published output: a current value plus the forecast
// series behind it. Numeric channels carry Value/Series, binary ones
// On/States. The sink decides how to map channels onto its own naming
// conventions.
type Channel struct {
	Name   string      `json:"name"`
	Kind   ChannelKind `json:"kind"`
	Unit   string      `json:"unit,omitempty"`
	Value  float64     `json:"value,omitempty"`
	On     bool        `json:"on,omitempty"`
	Series []Point     `json:"series,omitempty"`
	States []BoolPoint `json:"states,omitempty"`
}

// NumericChannel builds a numeric channel whose current value is the
// first series point.
func NumericChannel(name, unit string, series []Point) Channel {
	c := Channel{Name: name, Kind: ChannelNumeric, Unit: unit, Series: series}
	if len(series) > 0 {
		c.Value = series[0].Value
	}
	return c
}

// BinaryChannel builds a binary channel whose current state is the
// first series point.
func BinaryChannel(name string, states []BoolPoint) Channel {
	c := Channel{Name: name, Kind: ChannelBinary, States: states}
	if len(states) > 0 {
		c.On = states[0].On
	}
	return c
}
