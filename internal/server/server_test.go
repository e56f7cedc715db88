package server

import (
	"context"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/simone-weiss/ankaios/internal/config"
	"github.com/simone-weiss/ankaios/internal/state"
	"github.com/simone-weiss/ankaios/internal/wire"
	"github.com/simone-weiss/ankaios/internal/workloadstate"
)

// fakeStream is a minimal grpc.ServerStream plus the Send/Recv pair
// wire.AgentConnectionStream and wire.CliConnectionStream both require. Recv
// drains a pre-seeded inbound queue, then blocks until hold closes before
// reporting EOF, so a test can keep a session "live" across a goroutine
// boundary.
type fakeStream struct {
	mu      sync.Mutex
	inbound []*wire.ToServer
	sent    []*wire.FromServer
	ctx     context.Context
	hold    chan struct{}
}

func newFakeStream(msgs ...*wire.ToServer) *fakeStream {
	hold := make(chan struct{})
	close(hold) // default: EOF as soon as the queue drains
	return &fakeStream{inbound: msgs, ctx: context.Background(), hold: hold}
}

// newHoldingFakeStream behaves like newFakeStream but blocks on Recv once
// its queue drains, until release is called — used to keep a session
// registered across a goroutine boundary.
func newHoldingFakeStream(msgs ...*wire.ToServer) *fakeStream {
	return &fakeStream{inbound: msgs, ctx: context.Background(), hold: make(chan struct{})}
}

func (f *fakeStream) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.hold:
	default:
		close(f.hold)
	}
}

func (f *fakeStream) Recv() (*wire.ToServer, error) {
	f.mu.Lock()
	if len(f.inbound) > 0 {
		msg := f.inbound[0]
		f.inbound = f.inbound[1:]
		f.mu.Unlock()
		return msg, nil
	}
	hold := f.hold
	f.mu.Unlock()

	<-hold
	return nil, io.EOF
}

func (f *fakeStream) Send(msg *wire.FromServer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeStream) sentMessages() []*wire.FromServer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*wire.FromServer, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeStream) SetHeader(metadata.MD) error  { return nil }
func (f *fakeStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeStream) SetTrailer(metadata.MD)       {}
func (f *fakeStream) Context() context.Context     { return f.ctx }
func (f *fakeStream) SendMsg(any) error             { return nil }
func (f *fakeStream) RecvMsg(any) error             { return nil }

var _ wire.AgentConnectionStream = (*fakeStream)(nil)
var _ wire.CliConnectionStream = (*fakeStream)(nil)

func testServer(t *testing.T, startup *wire.State) *Server {
	t.Helper()
	if startup == nil {
		startup = wire.NewState()
	}
	cfg := &config.ServerConfig{ListenAddr: "127.0.0.1:0"}
	return New(cfg, state.New(startup), workloadstate.New(), nil, nil)
}

func TestAgentConnection_RejectsNonHelloFirstMessage(t *testing.T) {
	s := testServer(t, nil)
	stream := newFakeStream(&wire.ToServer{Content: wire.ToServerContent{Goodbye: &wire.Goodbye{}}})

	err := s.AgentConnection(stream)
	require.Error(t, err)
}

func TestAgentConnection_DuplicateNameRejected(t *testing.T) {
	s := testServer(t, nil)

	first := newHoldingFakeStream(&wire.ToServer{Content: wire.ToServerContent{AgentHello: &wire.AgentHello{AgentName: "agent_A"}}})
	done := make(chan struct{})
	go func() {
		_ = s.AgentConnection(first)
		close(done)
	}()

	for !s.registry.IsAgentOnline("agent_A") {
		runtime.Gosched()
	}

	dup := newFakeStream(&wire.ToServer{Content: wire.ToServerContent{AgentHello: &wire.AgentHello{AgentName: "agent_A"}}})
	err := s.AgentConnection(dup)
	assert.Error(t, err)

	first.release()
	<-done
}

func TestAgentConnection_ReplaysCurrentAssignmentOnConnect(t *testing.T) {
	startup := wire.NewState()
	startup.Workloads["nginx"] = &wire.Workload{Agent: "agent_A", Runtime: "podman", RuntimeConfig: "image: nginx"}

	s := testServer(t, startup)
	stream := newFakeStream(&wire.ToServer{Content: wire.ToServerContent{AgentHello: &wire.AgentHello{AgentName: "agent_A"}}})

	err := s.AgentConnection(stream)
	require.NoError(t, err)

	sent := stream.sentMessages()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].Content.UpdateWorkload)
	require.Len(t, sent[0].Content.UpdateWorkload.AddedWorkloads, 1)
	assert.Equal(t, "nginx", sent[0].Content.UpdateWorkload.AddedWorkloads[0].Name)
}

func TestAgentConnection_WorkloadStateReportUpdatesAggregator(t *testing.T) {
	s := testServer(t, nil)
	// Hold the session open: ending it marks agent_A's workloads EXEC_UNKNOWN.
	stream := newHoldingFakeStream(
		&wire.ToServer{Content: wire.ToServerContent{AgentHello: &wire.AgentHello{AgentName: "agent_A"}}},
		&wire.ToServer{Content: wire.ToServerContent{UpdateWorkloadState: &wire.UpdateWorkloadStateMsg{
			WorkloadStates: []wire.WorkloadState{{WorkloadName: "nginx", AgentName: "agent_A", ExecutionState: wire.ExecRunning}},
		}}},
	)

	done := make(chan error, 1)
	go func() { done <- s.AgentConnection(stream) }()

	require.Eventually(t, func() bool {
		return len(s.aggregator.ForWorkload("nginx")) > 0
	}, time.Second, time.Millisecond)

	states := s.aggregator.ForWorkload("nginx")
	require.Len(t, states, 1)
	assert.Equal(t, wire.ExecRunning, states[0].ExecutionState)

	stream.release()
	err := <-done
	require.NoError(t, err)
}

func TestAgentConnection_DuplicateHelloOnEstablishedSessionIsFatal(t *testing.T) {
	s := testServer(t, nil)
	stream := newFakeStream(
		&wire.ToServer{Content: wire.ToServerContent{AgentHello: &wire.AgentHello{AgentName: "agent_A"}}},
		&wire.ToServer{Content: wire.ToServerContent{AgentHello: &wire.AgentHello{AgentName: "agent_A"}}},
	)

	err := s.AgentConnection(stream)
	require.Error(t, err)
}

func TestCliConnection_CompleteStateRequest(t *testing.T) {
	startup := wire.NewState()
	startup.Workloads["nginx"] = &wire.Workload{Agent: "agent_A", Runtime: "podman", RuntimeConfig: "image: nginx"}
	s := testServer(t, startup)

	stream := newFakeStream(&wire.ToServer{Content: wire.ToServerContent{Request: &wire.Request{
		RequestID: "req-1",
		Content:   wire.RequestContent{CompleteStateReq: &wire.CompleteStateRequest{}},
	}}})

	err := s.CliConnection(stream)
	require.NoError(t, err)

	sent := stream.sentMessages()
	require.Len(t, sent, 1)
	resp := sent[0].Content.Response
	require.NotNil(t, resp)
	assert.Equal(t, "req-1", resp.RequestID)
	require.NotNil(t, resp.Content.CompleteState)
	assert.Contains(t, resp.Content.CompleteState.CurrentState.Workloads, "nginx")
}

func TestCliConnection_UpdateStateRequestAdmitted(t *testing.T) {
	s := testServer(t, nil)

	newState := wire.NewState()
	newState.Workloads["nginx"] = &wire.Workload{Agent: "agent_A", Runtime: "podman", RuntimeConfig: "image: nginx"}

	stream := newFakeStream(&wire.ToServer{Content: wire.ToServerContent{Request: &wire.Request{
		RequestID: "req-2",
		Content: wire.RequestContent{UpdateState: &wire.UpdateStateRequest{
			NewState:   newState,
			UpdateMask: []string{"currentState.workloads.nginx"},
		}},
	}}})

	err := s.CliConnection(stream)
	require.NoError(t, err)

	sent := stream.sentMessages()
	require.Len(t, sent, 1)
	resp := sent[0].Content.Response
	require.NotNil(t, resp)
	assert.NotNil(t, resp.Content.Success)
}

func TestCliConnection_UpdateStateRequestDeniedLeavesStateUnchanged(t *testing.T) {
	startup := wire.NewState()
	startup.Workloads["nginx"] = &wire.Workload{
		Agent: "agent_A", Runtime: "podman", RuntimeConfig: "image: nginx",
		AccessRights: wire.AccessRights{Deny: []wire.AccessRule{{Operation: wire.OpReplace, UpdateMask: []string{"currentState.workloads.nginx.runtime"}}}},
	}
	s := testServer(t, startup)

	newState := wire.NewState()
	newState.Workloads["nginx"] = &wire.Workload{Agent: "agent_A", Runtime: "containerd", RuntimeConfig: "image: nginx"}

	stream := newFakeStream(&wire.ToServer{Content: wire.ToServerContent{Request: &wire.Request{
		RequestID: "req-3",
		Content: wire.RequestContent{UpdateState: &wire.UpdateStateRequest{
			NewState:   newState,
			UpdateMask: []string{"currentState.workloads.nginx.runtime"},
		}},
	}}})

	err := s.CliConnection(stream)
	require.NoError(t, err)

	sent := stream.sentMessages()
	require.Len(t, sent, 1)
	resp := sent[0].Content.Response
	require.NotNil(t, resp.Content.Error)
	assert.NotEmpty(t, resp.Content.Error.Message)
}
