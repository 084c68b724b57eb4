package optimizer

import "fmt"

// Residual-SoC valuation modes. The energy left in the battery at the
// horizon end is credited at the minimum forecast price by default so
// hoarding is never valued above what the energy could have been
// bought for; "mean" values it at the average price instead.
const (
	ValuationMin  = "min"
	ValuationMean = "mean"
)

// Config tunes the solver.
type Config struct {
	// ResidualValuation selects how the final state of charge is
	// credited in the objective: "min" or "mean".
	ResidualValuation string `json:"residual_valuation"`
	// BigMFactor scales the big-M constant linking the full-charge
	// indicator to export: M = BigMFactor × capacity. Too small a
	// value makes export infeasible even when full; too large slows
	// the relaxation.
	BigMFactor float64 `json:"big_m_factor"`
	// MaxNodes bounds the branch-and-bound search.
	MaxNodes int `json:"max_nodes"`
	// TimeoutSeconds bounds the wall-clock time of one solve.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ResidualValuation == "" {
		c.ResidualValuation = ValuationMin
	}
	if c.BigMFactor == 0 {
		c.BigMFactor = 2
	}
	if c.MaxNodes == 0 {
		c.MaxNodes = 100000
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 120
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.ResidualValuation != ValuationMin && c.ResidualValuation != ValuationMean {
		return fmt.Errorf("unknown residual valuation %q", c.ResidualValuation)
	}
	if c.BigMFactor <= 0 {
		return fmt.Errorf("big-M factor must be positive, got %.2f", c.BigMFactor)
	}
	if c.MaxNodes < 0 || c.TimeoutSeconds < 0 {
		return fmt.Errorf("search bounds must be non-negative")
	}
	return nil
}
