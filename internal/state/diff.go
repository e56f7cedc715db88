package state

import (
	"reflect"

	"github.com/simone-weiss/ankaios/internal/wire"
)

// DeleteGraph records, per deleted workload name, the DeleteCondition its
// dependents required at the moment of deletion. A later re-add of a
// workload with the same name can then rebuild DeletedWorkload.Dependencies
// correctly for a subsequent delete even after the original dependent has
// itself left currentState. Grounded on the Rust source's DeleteGraph
// (server_state.rs), whose own module was not retrieved in full — this is
// an idiomatic Go reconstruction of its observed call-site behavior.
type DeleteGraph struct {
	conditions map[string]map[string]wire.DeleteCondition
}

// NewDeleteGraph returns an empty graph.
func NewDeleteGraph() *DeleteGraph {
	return &DeleteGraph{conditions: map[string]map[string]wire.DeleteCondition{}}
}

// Record stores the dependents-to-condition map observed for a workload at
// the moment it was deleted.
func (g *DeleteGraph) Record(workload string, deps map[string]wire.DeleteCondition) {
	if len(deps) == 0 {
		return
	}
	g.conditions[workload] = deps
}

// Lookup returns any previously recorded dependents for workload.
func (g *DeleteGraph) Lookup(workload string) map[string]wire.DeleteCondition {
	return g.conditions[workload]
}

// Forget drops the recorded entry, called once a workload of that name is
// freshly added again and a new delete-time snapshot will replace it.
func (g *DeleteGraph) Forget(workload string) {
	delete(g.conditions, workload)
}

// translateAddToDelete maps an AddCondition (how a dependent wants to see
// the dependency come up) to the DeleteCondition it implies (how the
// dependent needs to see the dependency go down), per spec §4.3 step 3.
func translateAddToDelete(c wire.AddCondition) wire.DeleteCondition {
	if c == wire.AddCondRunning {
		return wire.DelCondRunning
	}
	return wire.DelCondNotPendingNorRunning
}

// dependentsOf returns, for a workload named target across both old and
// new state, the set of workloads that declare a dependency on it,
// translated into DeleteConditions.
func dependentsOf(target string, old, newS *wire.State) map[string]wire.DeleteCondition {
	out := map[string]wire.DeleteCondition{}
	collect := func(s *wire.State) {
		if s == nil {
			return
		}
		for name, w := range s.Workloads {
			if cond, ok := w.Dependencies[target]; ok {
				out[name] = translateAddToDelete(cond)
			}
		}
	}
	collect(old)
	collect(newS)
	return out
}

func workloadsEqual(a, b *wire.Workload) bool {
	return reflect.DeepEqual(a, b)
}

// pendingKind distinguishes which half of a two-phase update-strategy
// transition is still outstanding.
type pendingKind int

const (
	pendingDelete pendingKind = iota // AT_LEAST_ONCE: new added, old deleted once new reports EXEC_RUNNING
	pendingAdd                       // AT_MOST_ONCE: old deleted, new added once old reports EXEC_REMOVED
)

// pendingTransition tracks one half of a reconfiguration whose emission is
// deferred until the other half confirms, per spec §4.3's update-strategy
// table.
type pendingTransition struct {
	kind     pendingKind
	agent    string
	deleted  *wire.DeletedWorkload // set when kind == pendingDelete: wait for "name" to report EXEC_RUNNING, then emit this delete of the *old* identity
	added    *wire.AddedWorkload   // set when kind == pendingAdd: wait for "name" to report EXEC_REMOVED, then emit this add
	watchFor string                // workload name whose state report resolves this transition
}

// diffResult is the per-agent UpdateWorkload batches produced by one
// UpdateState call, plus any transitions still awaiting a state report.
type diffResult struct {
	batches  map[string]*wire.UpdateWorkloadMsg
	pending  []pendingTransition
}

func ensureBatch(batches map[string]*wire.UpdateWorkloadMsg, agent string) *wire.UpdateWorkloadMsg {
	b, ok := batches[agent]
	if !ok {
		b = &wire.UpdateWorkloadMsg{}
		batches[agent] = b
	}
	return b
}

func toAddedWorkload(name string, w *wire.Workload) wire.AddedWorkload {
	return wire.AddedWorkload{
		Name:           name,
		Agent:          w.Agent,
		Runtime:        w.Runtime,
		RuntimeConfig:  w.RuntimeConfig,
		Restart:        w.Restart,
		UpdateStrategy: w.UpdateStrategy,
		Dependencies:   w.Dependencies,
		Tags:           w.Tags,
	}
}

func toDeletedWorkload(name string, agent string, deps map[string]wire.DeleteCondition) wire.DeletedWorkload {
	return wire.DeletedWorkload{Name: name, Agent: agent, Dependencies: deps}
}

// computeDiff implements spec §4.3's diff-generation algorithm: per agent,
// the set-difference of old/new assignment, plus changed-workload handling
// driven by UpdateStrategy.
func computeDiff(old, newS *wire.State, graph *DeleteGraph) diffResult {
	result := diffResult{batches: map[string]*wire.UpdateWorkloadMsg{}}

	names := map[string]struct{}{}
	for n := range old.Workloads {
		names[n] = struct{}{}
	}
	for n := range newS.Workloads {
		names[n] = struct{}{}
	}

	for name := range names {
		oldW, hadOld := old.Workloads[name]
		newW, hasNew := newS.Workloads[name]

		switch {
		case !hadOld && hasNew:
			// Newly appeared: plain add.
			graph.Forget(name)
			b := ensureBatch(result.batches, newW.Agent)
			b.AddedWorkloads = append(b.AddedWorkloads, toAddedWorkload(name, newW))

		case hadOld && !hasNew:
			// Removed entirely.
			deps := dependentsOf(name, old, newS)
			if len(deps) == 0 {
				deps = graph.Lookup(name)
			}
			graph.Record(name, deps)
			b := ensureBatch(result.batches, oldW.Agent)
			b.DeletedWorkloads = append(b.DeletedWorkloads, toDeletedWorkload(name, oldW.Agent, deps))

		case hadOld && hasNew && oldW.Agent != newW.Agent:
			// Reassigned to a different agent: delete from old, add to new.
			deps := dependentsOf(name, old, newS)
			if len(deps) == 0 {
				deps = graph.Lookup(name)
			}
			graph.Record(name, deps)
			bOld := ensureBatch(result.batches, oldW.Agent)
			bOld.DeletedWorkloads = append(bOld.DeletedWorkloads, toDeletedWorkload(name, oldW.Agent, deps))
			bNew := ensureBatch(result.batches, newW.Agent)
			bNew.AddedWorkloads = append(bNew.AddedWorkloads, toAddedWorkload(name, newW))
			graph.Forget(name)

		case hadOld && hasNew && !workloadsEqual(oldW, newW):
			// Same agent, configuration changed: ordering per UpdateStrategy.
			applyStrategyTransition(&result, name, oldW, newW, old, newS, graph)
		}
	}

	return result
}

func applyStrategyTransition(result *diffResult, name string, oldW, newW *wire.Workload, old, newS *wire.State, graph *DeleteGraph) {
	deps := dependentsOf(name, old, newS)
	if len(deps) == 0 {
		deps = graph.Lookup(name)
	}

	switch newW.UpdateStrategy {
	case wire.UpdateStrategyAtLeastOnce:
		// Added first; delete of the old identity deferred until the new
		// one reports EXEC_RUNNING.
		graph.Forget(name)
		b := ensureBatch(result.batches, newW.Agent)
		b.AddedWorkloads = append(b.AddedWorkloads, toAddedWorkload(name, newW))
		del := toDeletedWorkload(name, oldW.Agent, deps)
		result.pending = append(result.pending, pendingTransition{
			kind: pendingDelete, agent: oldW.Agent, deleted: &del, watchFor: name,
		})

	case wire.UpdateStrategyAtMostOnce:
		// Deleted first; add of the new identity deferred until the old
		// one reports EXEC_REMOVED.
		graph.Record(name, deps)
		b := ensureBatch(result.batches, oldW.Agent)
		b.DeletedWorkloads = append(b.DeletedWorkloads, toDeletedWorkload(name, oldW.Agent, deps))
		add := toAddedWorkload(name, newW)
		result.pending = append(result.pending, pendingTransition{
			kind: pendingAdd, agent: newW.Agent, added: &add, watchFor: name,
		})

	default: // UNSPECIFIED: both in the same batch, agent free to order.
		graph.Forget(name)
		b := ensureBatch(result.batches, oldW.Agent)
		b.DeletedWorkloads = append(b.DeletedWorkloads, toDeletedWorkload(name, oldW.Agent, deps))
		bNew := ensureBatch(result.batches, newW.Agent)
		bNew.AddedWorkloads = append(bNew.AddedWorkloads, toAddedWorkload(name, newW))
	}
}
