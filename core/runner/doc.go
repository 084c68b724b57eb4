// Package runner orchestrates one dispatch run: device readings and
// forecasts feed the optimizer, analytics derive advisory signals, and
// the assembled output channels go to the configured sinks. A mutex
// guard keeps at most one run in flight; concurrent triggers are
// dropped.
package runner
