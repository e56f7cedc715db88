package accesscontrol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simone-weiss/ankaios/internal/wire"
)

func TestAdmit_DenyRuleBlocksReplace(t *testing.T) {
	old := wire.NewState()
	old.Workloads["nginx"] = &wire.Workload{
		Agent:   "agent_A",
		Runtime: "podman",
		AccessRights: wire.AccessRights{
			Deny: []wire.AccessRule{{
				Operation:  wire.OpReplace,
				UpdateMask: []string{"currentState.workloads.nginx.runtime"},
			}},
		},
	}

	newState := wire.NewState()
	newState.Workloads["nginx"] = &wire.Workload{Agent: "agent_A", Runtime: "docker", AccessRights: old.Workloads["nginx"].AccessRights}

	err := Admit(old, newState, []string{"currentState.workloads.nginx.runtime"})
	require.Error(t, err)
	var permErr *PermissionDeniedError
	require.ErrorAs(t, err, &permErr)
}

func TestAdmit_NoRulesAdmitsByDefault(t *testing.T) {
	old := wire.NewState()
	newState := wire.NewState()
	newState.Workloads["nginx"] = &wire.Workload{Agent: "agent_A"}

	require.NoError(t, Admit(old, newState, []string{"currentState.workloads.nginx"}))
}

func TestAdmit_AllowListRejectsUnlistedPath(t *testing.T) {
	old := wire.NewState()
	newState := wire.NewState()
	newState.Workloads["nginx"] = &wire.Workload{
		Agent: "agent_A",
		AccessRights: wire.AccessRights{
			Allow: []wire.AccessRule{{Operation: wire.OpAdd, UpdateMask: []string{"currentState.workloads.nginx.tags"}}},
		},
	}

	err := Admit(old, newState, []string{"currentState.workloads.nginx.runtime"})
	require.Error(t, err)
}
