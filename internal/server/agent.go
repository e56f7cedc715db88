package server

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/simone-weiss/ankaios/internal/connreg"
	"github.com/simone-weiss/ankaios/internal/store"
	"github.com/simone-weiss/ankaios/internal/wire"
)

// AgentConnection is the server side of the agent's bidi stream. The first
// message must be AgentHello; every message after that is either a
// UpdateWorkloadState report, a Request, or a Goodbye.
func (s *Server) AgentConnection(stream wire.AgentConnectionStream) error {
	ctx := stream.Context()

	first, err := stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return status.Errorf(codes.Internal, "receiving first message: %v", err)
	}

	hello := first.Content.AgentHello
	if hello == nil || hello.AgentName == "" {
		return status.Error(codes.InvalidArgument, (&ProtocolError{Reason: "first message on AgentConnection must be a non-empty AgentHello"}).Error())
	}
	agentName := hello.AgentName

	conn, err := s.registry.RegisterAgent(agentName, stream)
	if err != nil {
		if errors.Is(err, connreg.ErrDuplicateAgent) {
			s.appendAudit(ctx, agentName, store.AuditAgentDuplicateHello, "agent_session", agentName, nil)
			return status.Errorf(codes.AlreadyExists, "agent %s already connected", agentName)
		}
		return status.Errorf(codes.Internal, "registering agent: %v", err)
	}
	defer func() {
		s.registry.Deregister(conn)
		delta := s.aggregator.MarkAgentUnknown(agentName)
		s.broadcastStateDelta(delta)
		s.appendAudit(context.Background(), agentName, store.AuditAgentDisconnected, "agent_session", agentName, nil)
	}()

	s.appendAudit(ctx, agentName, store.AuditAgentConnected, "agent_session", agentName, nil)
	s.logger.Info("agent connected", "agent_name", agentName)

	if assigned := s.manager.AssignmentFor(agentName); len(assigned) > 0 {
		welcome := &wire.FromServer{Content: wire.FromServerContent{UpdateWorkload: &wire.UpdateWorkloadMsg{AddedWorkloads: assigned}}}
		if err := stream.Send(welcome); err != nil {
			return status.Errorf(codes.Internal, "replaying assignment: %v", err)
		}
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("agent stream closed", "agent_name", agentName)
				return nil
			}
			if status.Code(err) == codes.Canceled {
				s.logger.Info("agent stream canceled", "agent_name", agentName)
				return nil
			}
			return status.Errorf(codes.Internal, "receiving message: %v", err)
		}

		switch {
		case msg.Content.UpdateWorkloadState != nil:
			s.handleWorkloadStateReport(agentName, msg.Content.UpdateWorkloadState)

		case msg.Content.Request != nil:
			resp := s.handleRequest(ctx, agentName, msg.Content.Request)
			if err := stream.Send(&wire.FromServer{Content: wire.FromServerContent{Response: resp}}); err != nil {
				return status.Errorf(codes.Internal, "sending response: %v", err)
			}

		case msg.Content.Goodbye != nil:
			s.logger.Info("agent sent goodbye", "agent_name", agentName)
			return nil

		case msg.Content.AgentHello != nil:
			return status.Error(codes.InvalidArgument, (&ProtocolError{Reason: "duplicate AgentHello on established session"}).Error())

		default:
			return status.Error(codes.InvalidArgument, (&ProtocolError{Reason: "empty ToServer envelope"}).Error())
		}
	}
}

// handleWorkloadStateReport folds an agent's self-reported states into the
// cluster-wide aggregate, republishes the resulting delta to every
// connected agent (for cross-agent dependency gating), and resolves any
// two-phase update-strategy transitions the report unblocks.
func (s *Server) handleWorkloadStateReport(agentName string, msg *wire.UpdateWorkloadStateMsg) {
	delta := s.aggregator.Apply(msg.WorkloadStates)
	for _, ws := range delta {
		s.appendAudit(context.Background(), agentName, store.AuditWorkloadTransitioned, "workload", ws.WorkloadName,
			map[string]any{"agent_name": ws.AgentName, "execution_state": ws.ExecutionState.String()})
	}
	s.broadcastStateDelta(delta)

	for _, ws := range msg.WorkloadStates {
		s.dispatchBatches(s.manager.ResolvePendingTransitions(ws))
	}
}
