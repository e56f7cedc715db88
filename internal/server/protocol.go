package server

import "fmt"

// ProtocolError is a malformed envelope, an unexpected tagged-union variant,
// or a duplicate AgentHello. Per spec §7 it is fatal to the connection: the
// stream handler returns it and the RPC closes.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}
