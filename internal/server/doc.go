// Package server implements the Ankaios Server: the process that owns
// currentState/startupState via internal/state, aggregates workload
// execution reports via internal/workloadstate, enforces access control via
// internal/accesscontrol, and exposes all of it to agents and the CLI over
// the two wire.ControlServer streams.
//
// Server holds no domain state of its own — it is glue. Every durable or
// in-memory table it touches is owned by the component that table's name
// matches (state.Manager owns currentState, workloadstate.Aggregator owns
// workloadStates, connreg.Registry owns live sessions, store.AuditStore owns
// the audit trail).
package server
