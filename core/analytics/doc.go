// Package analytics derives advisory signals from solved schedules and
// day-ahead price tables: the maximum safely-extractable discharge per
// step, and the cheapest/most-expensive contiguous price windows of a
// day, stabilized through daily persistence.
package analytics
