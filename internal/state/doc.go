// Package state implements the Server-side State Manager: the sole writer
// of currentState, the owner of startupState, and the diff engine that
// turns an admitted update into per-agent UpdateWorkload batches.
//
// Manager serializes every UpdateState call (spec: "concurrent requests are
// queued... linearizable semantics over currentState") behind a single
// mutex, mirroring the single-writer-task model the rest of the system
// uses for its other owned tables (the Connection Registry's per-agent
// sinks, the Aggregator's workloadStates).
package state
