// Package homeassistant adapts the Home Assistant REST API to the
// core's source and sink ports: entity history as consumption samples,
// per-day forecast attributes as solar points and price tables, the
// SoC sensor as the live battery state, and wattwise sensors as the
// output channel sink.
package homeassistant
