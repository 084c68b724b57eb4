package model

import "errors"

// RunStatus is the terminal outcome of one dispatch run.
type RunStatus int

const (
	// RunSucceeded means a schedule was produced and published.
	RunSucceeded RunStatus = iota
	// RunAbortedMissingInput means a required external read was
	// absent; nothing was published.
	RunAbortedMissingInput
	// RunAbortedInfeasible means the solver did not reach an optimal
	// solution; the previously published schedule stays in effect.
	RunAbortedInfeasible
)

func (s RunStatus) String() string {
	switch s {
	case RunSucceeded:
		return "succeeded"
	case RunAbortedMissingInput:
		return "aborted_missing_input"
	case RunAbortedInfeasible:
		return "aborted_infeasible"
	default:
		return "unknown"
	}
}

// ErrMissingInput marks a required external read that returned
// absent or empty. Wrap it with context and test with errors.Is.
var ErrMissingInput = errors.New("required input missing")
