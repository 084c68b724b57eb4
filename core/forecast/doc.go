// Package forecast turns noisy, irregularly sampled history and
// sparse day-ahead tables into clean per-step vectors aligned to the
// shared time grid. Forecasters truncate the grid horizon when their
// source runs out of data instead of extrapolating.
package forecast
