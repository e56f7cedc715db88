package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/simone-weiss/ankaios/internal/config"
	"github.com/simone-weiss/ankaios/internal/connreg"
	"github.com/simone-weiss/ankaios/internal/state"
	"github.com/simone-weiss/ankaios/internal/store"
	"github.com/simone-weiss/ankaios/internal/wire"
	"github.com/simone-weiss/ankaios/internal/workloadstate"
)

// Server wires the State Manager, Access Control Filter, Workload-State
// Aggregator, Connection Registry, and audit store together behind the two
// wire.ControlServer streams. It implements wire.ControlServer directly.
type Server struct {
	cfg        *config.ServerConfig
	manager    *state.Manager
	aggregator *workloadstate.Aggregator
	registry   *connreg.Registry
	audit      store.AuditStore
	logger     *slog.Logger

	grpcServer *grpc.Server
}

// New assembles a Server from its already-constructed collaborators. audit
// may be nil, in which case audit logging is a no-op (used by tests that
// don't care about the trail).
func New(cfg *config.ServerConfig, manager *state.Manager, aggregator *workloadstate.Aggregator, audit store.AuditStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		manager:    manager,
		aggregator: aggregator,
		registry:   connreg.New(logger.With("component", "connreg")),
		audit:      audit,
		logger:     logger.With("component", "server"),
	}
}

// Run listens on cfg.ListenAddr and serves the control service until ctx is
// canceled or the listener fails. It always attempts a graceful shutdown on
// the way out.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.ListenAddr, err)
	}

	s.grpcServer = grpc.NewServer(grpc.ForceServerCodec(wire.Codec))
	s.grpcServer.RegisterService(&wire.ServiceDesc, s)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control service listening", "addr", lis.Addr().String())
		errCh <- s.grpcServer.Serve(lis)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	case serveErr = <-errCh:
		if serveErr != nil {
			s.logger.Error("control service stopped serving", "error", serveErr)
		}
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutCtx); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}

// Shutdown stops accepting new RPCs and drains in-flight ones, force-closing
// if ctx expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.grpcServer == nil {
		return nil
	}
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		return ctx.Err()
	}
}

func (s *Server) appendAudit(ctx context.Context, actor string, action store.AuditAction, targetType, targetID string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &store.AuditEntry{
		Actor:      actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	}
	if err := s.audit.AppendAuditLog(ctx, entry); err != nil {
		s.logger.Warn("appending audit log entry failed", "error", err, "action", action)
	}
}

// dispatchBatches sends a per-agent UpdateWorkload diff to each named
// agent's live session, logging (but not failing on) agents currently
// offline — per spec §7's UnknownAgent policy, the directive is implicitly
// held by being reflected in currentState and replayed on that agent's next
// AgentHello.
func (s *Server) dispatchBatches(batches map[string]*wire.UpdateWorkloadMsg) {
	if len(batches) == 0 {
		return
	}
	perAgent := make(map[string]*wire.FromServer, len(batches))
	for agentName, batch := range batches {
		perAgent[agentName] = &wire.FromServer{Content: wire.FromServerContent{UpdateWorkload: batch}}
	}
	for _, name := range s.registry.BroadcastToAgents(perAgent) {
		s.logger.Warn("agent offline, directive held for next session", "agent_name", name)
	}
}

// broadcastStateDelta republishes a workload-state delta to every connected
// agent so each agent's local view of cluster-wide workload states (used by
// its scheduler to evaluate cross-agent AddCondition/DeleteCondition gates)
// stays current.
func (s *Server) broadcastStateDelta(delta []wire.WorkloadState) {
	if len(delta) == 0 {
		return
	}
	msg := &wire.FromServer{Content: wire.FromServerContent{UpdateWorkloadState: &wire.UpdateWorkloadStateMsg{WorkloadStates: delta}}}
	perAgent := make(map[string]*wire.FromServer, len(s.registry.AgentNames()))
	for _, name := range s.registry.AgentNames() {
		perAgent[name] = msg
	}
	s.registry.BroadcastToAgents(perAgent)
}
