// Package lifecycle provides the single-step pipelines that act on an existing
// cluster: delete (cleanup), start and stop.
//
// Each is an idempotent step whose check short-circuits when the cluster is
// already in the requested state, so repeated invocations succeed quietly.
package lifecycle
