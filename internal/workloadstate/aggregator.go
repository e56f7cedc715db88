package workloadstate

import (
	"sync"

	"github.com/simone-weiss/ankaios/internal/wire"
)

type key struct {
	workload string
	agent    string
}

// Aggregator is the sole writer of workloadStates. Readers take a
// consistent snapshot via Snapshot or receive deltas via Subscribe,
// mirroring spec §5's copy-on-write/versioned-snapshot guidance for
// read-mostly shared tables.
type Aggregator struct {
	mu      sync.RWMutex
	entries map[key]wire.WorkloadState

	subMu     sync.Mutex
	subs      map[int]chan []wire.WorkloadState
	nextSubID int
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		entries: map[key]wire.WorkloadState{},
		subs:    map[int]chan []wire.WorkloadState{},
	}
}

// Apply merges every WorkloadState in a report: overwrite-by-key, evict on
// EXEC_REMOVED. Returns the accepted entries (the delta), which callers
// publish downstream (to the Manager's ResolvePendingTransitions and to
// subscribers) — never the full snapshot.
func (a *Aggregator) Apply(reports []wire.WorkloadState) []wire.WorkloadState {
	if len(reports) == 0 {
		return nil
	}

	a.mu.Lock()
	for _, r := range reports {
		k := key{workload: r.WorkloadName, agent: r.AgentName}
		if r.ExecutionState == wire.ExecRemoved {
			delete(a.entries, k)
			continue
		}
		a.entries[k] = r
	}
	a.mu.Unlock()

	a.publish(reports)
	return reports
}

// MarkAgentUnknown forces EXEC_UNKNOWN on every entry currently owned by
// agentName, per spec §3's agent-session lifecycle: "On destruction, every
// workload owned by the agent has its state forced to EXEC_UNKNOWN."
func (a *Aggregator) MarkAgentUnknown(agentName string) []wire.WorkloadState {
	a.mu.Lock()
	var changed []wire.WorkloadState
	for k, v := range a.entries {
		if k.agent != agentName || v.ExecutionState == wire.ExecUnknown {
			continue
		}
		v.ExecutionState = wire.ExecUnknown
		a.entries[k] = v
		changed = append(changed, v)
	}
	a.mu.Unlock()

	if len(changed) > 0 {
		a.publish(changed)
	}
	return changed
}

// Snapshot returns every currently tracked entry. Callers must not mutate
// the returned slice's contents beyond local use.
func (a *Aggregator) Snapshot() []wire.WorkloadState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]wire.WorkloadState, 0, len(a.entries))
	for _, v := range a.entries {
		out = append(out, v)
	}
	return out
}

// ForWorkload returns the snapshot restricted to one workload name, used by
// the Agent Scheduler to evaluate AddCondition/DeleteCondition dependency
// gates against the latest observed states.
func (a *Aggregator) ForWorkload(name string) []wire.WorkloadState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []wire.WorkloadState
	for k, v := range a.entries {
		if k.workload == name {
			out = append(out, v)
		}
	}
	return out
}

// Subscribe returns a channel of deltas (never full snapshots) and an id to
// later Unsubscribe with. The channel is buffered; a slow subscriber drops
// further deltas rather than blocking the Aggregator.
func (a *Aggregator) Subscribe() (int, <-chan []wire.WorkloadState) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	id := a.nextSubID
	a.nextSubID++
	ch := make(chan []wire.WorkloadState, 32)
	a.subs[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscriber's channel.
func (a *Aggregator) Unsubscribe(id int) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	if ch, ok := a.subs[id]; ok {
		close(ch)
		delete(a.subs, id)
	}
}

func (a *Aggregator) publish(delta []wire.WorkloadState) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- delta:
		default:
			// Drop on full buffer: that subscriber never receives this
			// delta.
		}
	}
}
