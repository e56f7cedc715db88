package server

import (
	"context"

	"github.com/simone-weiss/ankaios/internal/accesscontrol"
	"github.com/simone-weiss/ankaios/internal/store"
	"github.com/simone-weiss/ankaios/internal/wire"
)

// handleRequest dispatches a Request to the appropriate State Manager
// operation and builds its Response, carrying the same RequestID. actor
// identifies the connection for the audit trail (an agentName or a CLI
// session id).
func (s *Server) handleRequest(ctx context.Context, actor string, req *wire.Request) *wire.Response {
	switch {
	case req.Content.UpdateState != nil:
		return s.handleUpdateStateRequest(ctx, actor, req.RequestID, req.Content.UpdateState)
	case req.Content.CompleteStateReq != nil:
		return s.handleCompleteStateRequest(ctx, actor, req.RequestID, req.Content.CompleteStateReq)
	default:
		return errorResponse(req.RequestID, "empty request content")
	}
}

func (s *Server) handleUpdateStateRequest(ctx context.Context, actor, requestID string, r *wire.UpdateStateRequest) *wire.Response {
	batches, err := s.manager.UpdateStateWithAdmission(r.NewState, r.UpdateMask, func(old, candidate *wire.State) error {
		return accesscontrol.Admit(old, candidate, r.UpdateMask)
	})
	if err != nil {
		s.appendAudit(ctx, actor, store.AuditDenied, "request", requestID, map[string]any{"message": err.Error()})
		return errorResponse(requestID, err.Error())
	}

	s.appendAudit(ctx, actor, store.AuditAdmitted, "request", requestID, map[string]any{"update_mask": r.UpdateMask})
	s.dispatchBatches(batches)
	return &wire.Response{RequestID: requestID, Content: wire.ResponseContent{Success: &wire.Success{}}}
}

func (s *Server) handleCompleteStateRequest(_ context.Context, _, requestID string, r *wire.CompleteStateRequest) *wire.Response {
	cs, err := s.manager.GetCompleteState(r.FieldMask, s.aggregator.Snapshot())
	if err != nil {
		return errorResponse(requestID, err.Error())
	}
	return &wire.Response{RequestID: requestID, Content: wire.ResponseContent{CompleteState: cs}}
}

func errorResponse(requestID, message string) *wire.Response {
	return &wire.Response{RequestID: requestID, Content: wire.ResponseContent{Error: &wire.Error{Message: message}}}
}
