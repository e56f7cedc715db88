package server

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/simone-weiss/ankaios/internal/store"
	"github.com/simone-weiss/ankaios/internal/wire"
)

// CliConnection is the server side of the CLI's bidi stream. Unlike
// AgentConnection there is no mandatory handshake message: a CLI session
// exists as soon as the stream opens, and every message on it is a Request
// or a Goodbye.
func (s *Server) CliConnection(stream wire.CliConnectionStream) error {
	ctx := stream.Context()

	conn := s.registry.RegisterCLI(stream)
	defer func() {
		s.registry.Deregister(conn)
		s.appendAudit(context.Background(), conn.ID, store.AuditCLIDisconnected, "cli_session", conn.ID, nil)
	}()
	s.appendAudit(ctx, conn.ID, store.AuditCLIConnected, "cli_session", conn.ID, nil)
	s.logger.Info("cli connected", "session_id", conn.ID)

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if status.Code(err) == codes.Canceled {
				return nil
			}
			return status.Errorf(codes.Internal, "receiving message: %v", err)
		}

		switch {
		case msg.Content.Request != nil:
			resp := s.handleRequest(ctx, conn.ID, msg.Content.Request)
			if err := stream.Send(&wire.FromServer{Content: wire.FromServerContent{Response: resp}}); err != nil {
				return status.Errorf(codes.Internal, "sending response: %v", err)
			}

		case msg.Content.Goodbye != nil:
			return nil

		default:
			return status.Error(codes.InvalidArgument, (&ProtocolError{Reason: "unexpected ToServer variant on CliConnection"}).Error())
		}
	}
}
