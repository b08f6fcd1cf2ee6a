// Package pipeline executes ordered, idempotent provisioning steps that share a
// RunContext.
//
// Each Step declares which RunContext fields it requires and produces. Validate
// checks those declarations form an acyclic graph whose producers run before
// their consumers, Plan lists the order without side effects, and Run executes
// the steps one at a time: a step whose Check reports the desired state is
// adopted instead of acted on, a step's Gate is polled until ready, and a failing
// step either aborts the run or, with PolicyWarn, only logs a warning.
package pipeline
