package wire

import "errors"

// ErrMalformedEnvelope is wrapped (with %w) into the error the decoder
// returns when a received message cannot be parsed at all.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// ProtocolError covers malformed envelopes, unexpected/unset tagged-union
// variants, and duplicate AgentHello. It is always fatal to the connection
// that produced it.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "protocol error: " + e.Reason + ": " + e.Err.Error()
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError wraps err (which may be nil) with a human-readable
// reason.
func NewProtocolError(reason string, err error) *ProtocolError {
	return &ProtocolError{Reason: reason, Err: err}
}

// TransportError marks a stream that broke underneath a live session.
// Receiving it means: drop the session, mark its workloads EXEC_UNKNOWN.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }
