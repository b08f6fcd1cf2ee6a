// Package readiness polls cluster state until a condition holds or a deadline passes.
//
// Conditions are expressed as [Check] functions so they can be attached to
// pipeline gates. [Wait] turns a check into a blocking wait that reports a
// provisionerr.TimeoutError naming the awaited condition.
package readiness
