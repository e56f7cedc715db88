package connreg

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/simone-weiss/ankaios/internal/wire"
)

// ErrDuplicateAgent is returned by RegisterAgent when a session for that
// agentName is already live.
var ErrDuplicateAgent = errors.New("duplicate agent")

// UnknownAgentError is returned when routing a directive to an agentName
// with no live session. Per spec §7, this is not necessarily fatal: the
// directive is held for that agent's next session.
type UnknownAgentError struct {
	AgentName string
}

func (e *UnknownAgentError) Error() string { return "unknown agent: " + e.AgentName }

// Registry indexes live agent sessions by agentName and live CLI sessions
// by a generated connection id.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Connection
	clis   map[string]*Connection
	logger *slog.Logger
}

// New returns an empty Registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		agents: map[string]*Connection{},
		clis:   map[string]*Connection{},
		logger: logger,
	}
}

// RegisterAgent admits a new agent session. A second AgentHello with the
// same name while one is live is rejected with ErrDuplicateAgent.
func (r *Registry) RegisterAgent(name string, sink Sink) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; exists {
		return nil, ErrDuplicateAgent
	}

	conn := NewConnection(name, KindAgent, sink, r.logger)
	r.agents[name] = conn
	r.logger.Info("agent connected", "agent_name", name, "total_agents", len(r.agents))
	return conn, nil
}

// RegisterCLI admits a new CLI session under a generated connection id.
func (r *Registry) RegisterCLI(sink Sink) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	conn := NewConnection(id, KindCLI, sink, r.logger)
	r.clis[id] = conn
	r.logger.Info("cli connected", "session_id", id)
	return conn
}

// Deregister removes a session, whichever index it belongs to.
func (r *Registry) Deregister(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch conn.Kind {
	case KindAgent:
		delete(r.agents, conn.ID)
		r.logger.Info("agent disconnected", "agent_name", conn.ID, "total_agents", len(r.agents))
	case KindCLI:
		delete(r.clis, conn.ID)
		r.logger.Info("cli disconnected", "session_id", conn.ID)
	}
}

// SendToAgent routes a FromServer envelope to the named agent's live
// session.
func (r *Registry) SendToAgent(name string, msg *wire.FromServer) error {
	r.mu.RLock()
	conn, ok := r.agents[name]
	r.mu.RUnlock()
	if !ok {
		return &UnknownAgentError{AgentName: name}
	}
	return conn.Send(msg)
}

// BroadcastToAgents sends a distinct FromServer envelope to each named
// agent present in the mapping; agents with no live session are skipped
// and returned so the caller can hold the directive for that agent's next
// session (per spec §7's UnknownAgent policy).
func (r *Registry) BroadcastToAgents(perAgent map[string]*wire.FromServer) (unreachable []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, msg := range perAgent {
		conn, ok := r.agents[name]
		if !ok {
			unreachable = append(unreachable, name)
			continue
		}
		if err := conn.Send(msg); err != nil {
			r.logger.Warn("sending to agent failed", "agent_name", name, "error", err)
			unreachable = append(unreachable, name)
		}
	}
	return unreachable
}

// IsAgentOnline reports whether name currently has a live session.
func (r *Registry) IsAgentOnline(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// AgentNames returns the currently connected agent names.
func (r *Registry) AgentNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for name := range r.agents {
		out = append(out, name)
	}
	return out
}
