package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToServerRoundTrip_AgentHello(t *testing.T) {
	msg := &ToServer{Content: ToServerContent{AgentHello: &AgentHello{AgentName: "agent_A"}}}

	decoded, err := UnmarshalToServer(msg.Marshal())
	require.NoError(t, err)
	require.NotNil(t, decoded.Content.AgentHello)
	require.Equal(t, "agent_A", decoded.Content.AgentHello.AgentName)
}

func TestToServerRoundTrip_Goodbye(t *testing.T) {
	msg := &ToServer{Content: ToServerContent{Goodbye: &Goodbye{}}}

	decoded, err := UnmarshalToServer(msg.Marshal())
	require.NoError(t, err)
	require.NotNil(t, decoded.Content.Goodbye)
}

func TestToServerRoundTrip_UpdateStateRequest(t *testing.T) {
	state := NewState()
	state.Workloads["nginx"] = &Workload{
		Agent:          "agent_A",
		Runtime:        "podman",
		Restart:        true,
		UpdateStrategy: UpdateStrategyAtMostOnce,
		Dependencies:   map[string]AddCondition{"base": AddCondRunning},
		Tags:           map[string]string{"env": "prod"},
	}
	msg := &ToServer{Content: ToServerContent{Request: &Request{
		RequestID: "req-1",
		Content: RequestContent{UpdateState: &UpdateStateRequest{
			NewState:   state,
			UpdateMask: []string{"currentState.workloads.nginx"},
		}},
	}}}

	decoded, err := UnmarshalToServer(msg.Marshal())
	require.NoError(t, err)
	req := decoded.Content.Request
	require.Equal(t, "req-1", req.RequestID)
	require.Equal(t, []string{"currentState.workloads.nginx"}, req.Content.UpdateState.UpdateMask)
	got := req.Content.UpdateState.NewState.Workloads["nginx"]
	require.Equal(t, "agent_A", got.Agent)
	require.True(t, got.Restart)
	require.Equal(t, UpdateStrategyAtMostOnce, got.UpdateStrategy)
	require.Equal(t, AddCondRunning, got.Dependencies["base"])
	require.Equal(t, "prod", got.Tags["env"])
}

func TestFromServerRoundTrip_UpdateWorkload(t *testing.T) {
	msg := &FromServer{Content: FromServerContent{UpdateWorkload: &UpdateWorkloadMsg{
		AddedWorkloads: []AddedWorkload{{
			Name: "nginx", Agent: "agent_A", Runtime: "podman",
			Dependencies: map[string]AddCondition{"base": AddCondSucceeded},
			Tags:         map[string]string{},
		}},
		DeletedWorkloads: []DeletedWorkload{{
			Name: "old", Agent: "agent_A",
			Dependencies: map[string]DeleteCondition{"base": DelCondRunning},
		}},
	}}}

	decoded, err := UnmarshalFromServer(msg.Marshal())
	require.NoError(t, err)
	require.Len(t, decoded.Content.UpdateWorkload.AddedWorkloads, 1)
	require.Len(t, decoded.Content.UpdateWorkload.DeletedWorkloads, 1)
	require.Equal(t, "nginx", decoded.Content.UpdateWorkload.AddedWorkloads[0].Name)
	require.Equal(t, AddCondSucceeded, decoded.Content.UpdateWorkload.AddedWorkloads[0].Dependencies["base"])
}

func TestFromServerRoundTrip_ResponseVariants(t *testing.T) {
	cases := []*Response{
		{RequestID: "r1", Content: ResponseContent{Success: &Success{}}},
		{RequestID: "r2", Content: ResponseContent{Error: &Error{Message: "denied"}}},
		{RequestID: "r3", Content: ResponseContent{CompleteState: &CompleteState{
			StartupState: NewState(), CurrentState: NewState(),
		}}},
	}
	for _, resp := range cases {
		msg := &FromServer{Content: FromServerContent{Response: resp}}
		decoded, err := UnmarshalFromServer(msg.Marshal())
		require.NoError(t, err)
		require.Equal(t, resp.RequestID, decoded.Content.Response.RequestID)
	}
}

func TestExecutionStateGapPreserved(t *testing.T) {
	ws := &WorkloadState{WorkloadName: "w", AgentName: "a", ExecutionState: ExecUnknown}
	decoded := &WorkloadState{}
	require.NoError(t, decoded.unmarshal(ws.Marshal()))
	require.Equal(t, ExecUnknown, decoded.ExecutionState)

	// Raw tag 9 (the preserved gap) must normalize to EXEC_UNKNOWN on decode.
	require.Equal(t, ExecUnknown, NormalizeExecutionState(9))
}

func TestUnmarshalToServer_EmptyIsProtocolError(t *testing.T) {
	_, err := UnmarshalToServer([]byte{})
	require.Error(t, err)
}
