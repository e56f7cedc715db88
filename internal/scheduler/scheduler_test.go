package scheduler

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/simone-weiss/ankaios/internal/runtime"
	"github.com/simone-weiss/ankaios/internal/wire"
	"github.com/simone-weiss/ankaios/internal/workloadstate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunAddWithoutDependenciesReachesRunning(t *testing.T) {
	driver := runtime.NewFake(t.TempDir(), testLogger())
	states := workloadstate.New()

	var reported []wire.ExecutionState
	reportMu := make(chan struct{}, 1)
	reportMu <- struct{}{}

	s := New(driver, states, func(ws []wire.WorkloadState) {
		<-reportMu
		reported = append(reported, ws[0].ExecutionState)
		reportMu <- struct{}{}
	}, testLogger())

	s.HandleUpdateWorkload(wire.UpdateWorkloadMsg{
		AddedWorkloads: []wire.AddedWorkload{{
			Name:          "nginx",
			Agent:         "agent_A",
			Runtime:       "fake",
			RuntimeConfig: "sleep 60",
		}},
	})

	require.Eventually(t, func() bool {
		for _, ws := range states.ForWorkload("nginx") {
			if ws.ExecutionState == wire.ExecRunning {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRunAddWaitsForDependency(t *testing.T) {
	driver := runtime.NewFake(t.TempDir(), testLogger())
	states := workloadstate.New()

	s := New(driver, states, func([]wire.WorkloadState) {}, testLogger())

	s.HandleUpdateWorkload(wire.UpdateWorkloadMsg{
		AddedWorkloads: []wire.AddedWorkload{{
			Name:          "hello2",
			Agent:         "agent_A",
			Runtime:       "fake",
			RuntimeConfig: "sleep 60",
			Dependencies:  map[string]wire.AddCondition{"nginx": wire.AddCondRunning},
		}},
	})

	time.Sleep(50 * time.Millisecond)
	for _, ws := range states.ForWorkload("hello2") {
		require.NotEqual(t, wire.ExecRunning, ws.ExecutionState)
	}

	s.Observe([]wire.WorkloadState{{WorkloadName: "nginx", AgentName: "agent_A", ExecutionState: wire.ExecRunning}})

	require.Eventually(t, func() bool {
		for _, ws := range states.ForWorkload("hello2") {
			if ws.ExecutionState == wire.ExecRunning {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRunDeleteReachesRemoved(t *testing.T) {
	driver := runtime.NewFake(t.TempDir(), testLogger())
	states := workloadstate.New()

	s := New(driver, states, func([]wire.WorkloadState) {}, testLogger())

	s.HandleUpdateWorkload(wire.UpdateWorkloadMsg{
		AddedWorkloads: []wire.AddedWorkload{{
			Name:          "nginx",
			Agent:         "agent_A",
			Runtime:       "fake",
			RuntimeConfig: "sleep 60",
		}},
	})
	require.Eventually(t, func() bool {
		for _, ws := range states.ForWorkload("nginx") {
			if ws.ExecutionState == wire.ExecRunning {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)

	s.HandleUpdateWorkload(wire.UpdateWorkloadMsg{
		DeletedWorkloads: []wire.DeletedWorkload{{Name: "nginx", Agent: "agent_A"}},
	})

	require.Eventually(t, func() bool {
		return len(states.ForWorkload("nginx")) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSupersedeCancelsPriorGeneration(t *testing.T) {
	driver := runtime.NewFake(t.TempDir(), testLogger())
	states := workloadstate.New()
	s := New(driver, states, func([]wire.WorkloadState) {}, testLogger())

	s.HandleUpdateWorkload(wire.UpdateWorkloadMsg{
		AddedWorkloads: []wire.AddedWorkload{{
			Name:          "nginx",
			Agent:         "agent_A",
			Runtime:       "fake",
			RuntimeConfig: "sleep 60",
			Dependencies:  map[string]wire.AddCondition{"never-running": wire.AddCondRunning},
		}},
	})

	s.HandleUpdateWorkload(wire.UpdateWorkloadMsg{
		AddedWorkloads: []wire.AddedWorkload{{
			Name:          "nginx",
			Agent:         "agent_A",
			Runtime:       "fake",
			RuntimeConfig: "true",
		}},
	})

	require.Eventually(t, func() bool {
		for _, ws := range states.ForWorkload("nginx") {
			if ws.ExecutionState == wire.ExecSucceeded {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
}
