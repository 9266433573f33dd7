// Package initializer turns a topology.Config into an ordered list of
// administrative operations and applies it against a cluster coordinator.
//
// The plan is a list of typed operations:
//
//	RegisterShard | TagShard | EnableSharding | ShardCollection | AssignZoneRange
//
// Plan builds the list without touching the cluster, so callers can print
// or assert on it. Runner executes the list strictly in order through an
// Admin implementation (the HTTP coordinator client in package cluster, the
// MongoDB client in package mongoadmin, or the in-memory catalog in package
// coordinator). The first failure stops the run and surfaces as a
// *StepError naming the step; there is no retry and no rollback.
//
// Re-running a plan is safe: every Admin implementation treats re-applying
// an identical operation as a no-op.
package initializer
