package wire

import (
	"context"

	"google.golang.org/grpc"
)

// AgentConnectionStream is the server-side view of the AgentConnection bidi
// stream: agents send ToServer, the server sends FromServer.
type AgentConnectionStream interface {
	Send(*FromServer) error
	Recv() (*ToServer, error)
	grpc.ServerStream
}

// CliConnectionStream is the server-side view of the CliConnection bidi
// stream, carrying the same envelope types as AgentConnectionStream: CLI
// Request/Response flow through the same tagged unions as agent traffic.
type CliConnectionStream interface {
	Send(*FromServer) error
	Recv() (*ToServer, error)
	grpc.ServerStream
}

// ControlServer is implemented by the Ankaios server to handle both
// connection kinds.
type ControlServer interface {
	AgentConnection(AgentConnectionStream) error
	CliConnection(CliConnectionStream) error
}

type agentConnectionServerStream struct {
	grpc.ServerStream
}

func (s *agentConnectionServerStream) Send(m *FromServer) error { return s.ServerStream.SendMsg(m) }
func (s *agentConnectionServerStream) Recv() (*ToServer, error) {
	m := new(ToServer)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type cliConnectionServerStream struct {
	grpc.ServerStream
}

func (s *cliConnectionServerStream) Send(m *FromServer) error { return s.ServerStream.SendMsg(m) }
func (s *cliConnectionServerStream) Recv() (*ToServer, error) {
	m := new(ToServer)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func agentConnectionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ControlServer).AgentConnection(&agentConnectionServerStream{stream})
}

func cliConnectionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ControlServer).CliConnection(&cliConnectionServerStream{stream})
}

// ServiceName is the fully-qualified gRPC service name, as it would appear
// in the reference IDL's `service` declaration.
const ServiceName = "ankaios.Control"

// ServiceDesc is the hand-authored equivalent of what protoc-gen-go-grpc
// would generate for a service exposing the two streaming methods this
// protocol needs. Register it with grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "AgentConnection",
			Handler:       agentConnectionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "CliConnection",
			Handler:       cliConnectionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "ankaios.proto",
}

// ControlClient is the client-side counterpart used by cmd/ank-agent and
// cmd/ank.
type ControlClient interface {
	AgentConnection(ctx context.Context, opts ...grpc.CallOption) (AgentConnectionClientStream, error)
	CliConnection(ctx context.Context, opts ...grpc.CallOption) (CliConnectionClientStream, error)
}

// AgentConnectionClientStream is the client-side view: the agent sends
// ToServer and receives FromServer.
type AgentConnectionClientStream interface {
	Send(*ToServer) error
	Recv() (*FromServer, error)
	grpc.ClientStream
}

// CliConnectionClientStream is the client-side view for the CLI.
type CliConnectionClientStream interface {
	Send(*ToServer) error
	Recv() (*FromServer, error)
	grpc.ClientStream
}

type controlClient struct {
	cc *grpc.ClientConn
}

// NewControlClient wraps a grpc.ClientConn for dialing AgentConnection and
// CliConnection streams. Callers must pass grpc.ForceCodec(wire.Codec)
// among their dial/call options, since these messages do not implement
// proto.Message.
func NewControlClient(cc *grpc.ClientConn) ControlClient {
	return &controlClient{cc: cc}
}

type agentConnectionClientStream struct {
	grpc.ClientStream
}

func (s *agentConnectionClientStream) Send(m *ToServer) error { return s.ClientStream.SendMsg(m) }
func (s *agentConnectionClientStream) Recv() (*FromServer, error) {
	m := new(FromServer)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *controlClient) AgentConnection(ctx context.Context, opts ...grpc.CallOption) (AgentConnectionClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/AgentConnection", opts...)
	if err != nil {
		return nil, err
	}
	return &agentConnectionClientStream{stream}, nil
}

type cliConnectionClientStream struct {
	grpc.ClientStream
}

func (s *cliConnectionClientStream) Send(m *ToServer) error { return s.ClientStream.SendMsg(m) }
func (s *cliConnectionClientStream) Recv() (*FromServer, error) {
	m := new(FromServer)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *controlClient) CliConnection(ctx context.Context, opts ...grpc.CallOption) (CliConnectionClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], "/"+ServiceName+"/CliConnection", opts...)
	if err != nil {
		return nil, err
	}
	return &cliConnectionClientStream{stream}, nil
}
