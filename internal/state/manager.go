package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/simone-weiss/ankaios/internal/fieldmask"
	"github.com/simone-weiss/ankaios/internal/wire"
)

// Manager owns startupState (immutable for the process lifetime) and
// currentState (mutable, single-writer). It is the sole component
// permitted to mutate currentState; every UpdateState call is serialized
// behind mu, giving linearizable semantics as spec §5 requires.
type Manager struct {
	mu sync.Mutex

	startupState *wire.State
	currentState *wire.State
	graph        *DeleteGraph

	pending []pendingTransition
}

// New seeds startupState and currentState from the loaded startup
// artifact. startupState is never mutated again.
func New(startup *wire.State) *Manager {
	return &Manager{
		startupState: startup,
		currentState: cloneState(startup),
		graph:        NewDeleteGraph(),
	}
}

func cloneState(s *wire.State) *wire.State {
	data, err := json.Marshal(s)
	if err != nil {
		// s is always produced by our own decoders/config loader; a
		// marshal failure here would mean a structural bug, not bad input.
		panic(fmt.Sprintf("state: cloning state: %v", err))
	}
	out := wire.NewState()
	if err := json.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("state: cloning state: %v", err))
	}
	return out
}

// GetCompleteState projects (startupState, currentState, workloadStates)
// onto fieldMask. workloadStates is supplied by the caller (the
// Aggregator owns that table; the Manager does not).
func (m *Manager) GetCompleteState(fieldMask []string, workloadStates []wire.WorkloadState) (*wire.CompleteState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	full := &wire.CompleteState{
		StartupState:   m.startupState,
		CurrentState:   m.currentState,
		WorkloadStates: workloadStates,
	}

	docJSON, err := json.Marshal(full)
	if err != nil {
		return nil, fmt.Errorf("marshaling complete state: %w", err)
	}

	projected, err := fieldmask.Project(docJSON, fieldMask)
	if err != nil {
		return nil, NewValidationError("projecting field mask: %v", err)
	}

	out := &wire.CompleteState{StartupState: wire.NewState(), CurrentState: wire.NewState()}
	if err := json.Unmarshal(projected, out); err != nil {
		return nil, fmt.Errorf("unmarshaling projected complete state: %w", err)
	}
	return out, nil
}

// UpdateState applies new_state to currentState scoped to updateMask, per
// spec §4.3. On success it returns the per-agent UpdateWorkload diff
// relative to the agents' previous assignment. On validation failure,
// currentState is left unchanged.
func (m *Manager) UpdateState(newState *wire.State, updateMask []string) (map[string]*wire.UpdateWorkloadMsg, error) {
	return m.UpdateStateWithAdmission(newState, updateMask, nil)
}

// UpdateStateWithAdmission is UpdateState with an admission hook run against
// the computed (old, candidate) pair before the patch is validated and
// committed, so the access control filter sees the exact candidate state
// that would result, while currentState stays untouched on denial. admit
// may be nil.
func (m *Manager) UpdateStateWithAdmission(newState *wire.State, updateMask []string, admit func(old, candidate *wire.State) error) (map[string]*wire.UpdateWorkloadMsg, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidate, err := m.applyMasked(newState, updateMask)
	if err != nil {
		return nil, err
	}

	if admit != nil {
		if err := admit(m.currentState, candidate); err != nil {
			return nil, err
		}
	}

	if err := Validate(candidate); err != nil {
		return nil, err
	}

	diff := computeDiff(m.currentState, candidate, m.graph)

	m.currentState = candidate
	m.pending = append(m.pending, diff.pending...)

	return diff.batches, nil
}

// applyMasked runs fieldmask.Apply over the JSON projections of
// currentState and new_state, both wrapped under a "currentState" root so
// that update_mask paths — which are written relative to CompleteState,
// e.g. "currentState.workloads.nginx.runtime" — resolve the same way they
// do for CompleteStateRequest's field_mask.
func (m *Manager) applyMasked(newState *wire.State, updateMask []string) (*wire.State, error) {
	for _, path := range updateMask {
		if err := validateMaskShape(path); err != nil {
			return nil, NewValidationError("%v", err)
		}
	}

	currentDoc, err := json.Marshal(wrappedCurrentState{CurrentState: m.currentState})
	if err != nil {
		return nil, fmt.Errorf("marshaling current state: %w", err)
	}
	newDoc, err := json.Marshal(wrappedCurrentState{CurrentState: newState})
	if err != nil {
		return nil, fmt.Errorf("marshaling new state: %w", err)
	}

	merged, err := fieldmask.Apply(currentDoc, newDoc, updateMask)
	if err != nil {
		return nil, NewValidationError("applying update mask: %v", err)
	}

	var out wrappedCurrentState
	out.CurrentState = wire.NewState()
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, NewValidationError("resulting state is malformed: %v", err)
	}
	return out.CurrentState, nil
}

// wrappedCurrentState gives update_mask paths the "currentState." prefix
// that spec.md §8's examples use for both UpdateStateRequest.update_mask
// and CompleteStateRequest.field_mask.
type wrappedCurrentState struct {
	CurrentState *wire.State `json:"currentState"`
}

// AssignmentFor returns the current assignment owned by agentName, as
// AddedWorkloads, so a freshly (re)connected agent can be replayed its full
// desired assignment per spec §8 scenario 5.
func (m *Manager) AssignmentFor(agentName string) []wire.AddedWorkload {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []wire.AddedWorkload
	for name, w := range m.currentState.Workloads {
		if w.Agent == agentName {
			out = append(out, toAddedWorkload(name, w))
		}
	}
	return out
}

// ResolvePendingTransitions checks outstanding two-phase update-strategy
// transitions (spec §4.3's AT_LEAST_ONCE / AT_MOST_ONCE table) against a
// freshly observed WorkloadState report, emitting the deferred half of any
// transition the report resolves. Called by the server glue after the
// Aggregator records the report.
func (m *Manager) ResolvePendingTransitions(ws wire.WorkloadState) map[string]*wire.UpdateWorkloadMsg {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]*wire.UpdateWorkloadMsg{}
	remaining := make([]pendingTransition, 0, len(m.pending))

	for _, p := range m.pending {
		if p.watchFor != ws.WorkloadName {
			remaining = append(remaining, p)
			continue
		}
		resolved := false
		switch p.kind {
		case pendingDelete:
			if ws.ExecutionState == wire.ExecRunning {
				b := ensureBatch(out, p.agent)
				b.DeletedWorkloads = append(b.DeletedWorkloads, *p.deleted)
				resolved = true
			}
		case pendingAdd:
			if ws.ExecutionState == wire.ExecRemoved {
				b := ensureBatch(out, p.agent)
				b.AddedWorkloads = append(b.AddedWorkloads, *p.added)
				resolved = true
			}
		}
		if !resolved {
			remaining = append(remaining, p)
		}
	}

	m.pending = remaining
	return out
}
