// Package connreg implements the Connection Registry: it indexes live
// agent streams by agentName, live CLI streams by an opaque connection id,
// and routes outbound FromServer envelopes to the right stream by name or
// by broadcast.
//
// # Thread safety
//
// Registry holds a single map per index (agents, CLIs) guarded by a mutex.
// Connection itself is a thin wrapper around a send sink plus a session
// identity; it has no mutable state of its own to guard. This mirrors the
// teacher's agent.Manager/agent.Connection split, minus the per-connection
// request/response correlation the teacher needs and this protocol does
// not: every Request here is answered synchronously within the Recv loop
// iteration that received it, so a Response never has to be routed back to
// a caller waiting on some other goroutine.
//
// # Session uniqueness
//
// RegisterAgent enforces exactly one live session per agentName: a second
// AgentHello with the same name while one is live is rejected with
// ErrDuplicateAgent, and the caller must treat that as a ProtocolError
// fatal to the new connection. After Deregister, the name becomes
// available again immediately.
package connreg
