// Package optimizer formulates and solves the multi-period battery
// dispatch problem: a mixed-integer linear program whose LP
// relaxations are solved with gonum's simplex and whose full-charge
// binaries are resolved by branch and bound.
package optimizer
