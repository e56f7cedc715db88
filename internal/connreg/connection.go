package connreg

import (
	"log/slog"

	"github.com/simone-weiss/ankaios/internal/wire"
)

// Sink is the minimal send capability a Connection needs from its
// transport. *wire.agentConnectionServerStream and
// *wire.cliConnectionServerStream both satisfy it.
type Sink interface {
	Send(*wire.FromServer) error
}

// Connection is one live agent or CLI session.
type Connection struct {
	ID   string // agentName for agent sessions, a generated uuid for CLI sessions
	Kind Kind

	sink   Sink
	logger *slog.Logger
}

// Kind distinguishes an agent session from a CLI session.
type Kind int

const (
	KindAgent Kind = iota
	KindCLI
)

// NewConnection wraps a send sink under a session identity.
func NewConnection(id string, kind Kind, sink Sink, logger *slog.Logger) *Connection {
	return &Connection{
		ID:     id,
		Kind:   kind,
		sink:   sink,
		logger: logger,
	}
}

// Send transmits a FromServer envelope over the connection's sink.
func (c *Connection) Send(msg *wire.FromServer) error {
	return c.sink.Send(msg)
}
