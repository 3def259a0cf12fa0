// Package analytics turns order and subscription snapshots into customer
// lifecycle and revenue figures: totals and CLV, value segments, monthly
// cohort retention, dunning recovery and a short revenue forecast.
//
// Every exported function is a pure function of its arguments. Nothing here
// performs I/O, logs or keeps state between calls, so the same input always
// yields an identical result and calls may run concurrently without
// coordination. Empty or invalid input produces the documented zero result
// rather than an error.
package analytics
