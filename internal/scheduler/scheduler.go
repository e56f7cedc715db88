package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/simone-weiss/ankaios/internal/runtime"
	"github.com/simone-weiss/ankaios/internal/wire"
	"github.com/simone-weiss/ankaios/internal/workloadstate"
)

const (
	backoffBase  = 1 * time.Second
	backoffCap   = 30 * time.Second
	stableReset  = 1 * time.Minute
	depPollEvery = 200 * time.Millisecond
)

// Scheduler runs one task per locally-assigned workload name, translating
// UpdateWorkload directives into runtime.Driver calls and reporting
// ExecutionState transitions through Report.
type Scheduler struct {
	driver runtime.Driver
	states *workloadstate.Aggregator // local view of cluster workload states, fed by Server republish
	report func([]wire.WorkloadState)
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*task
}

// New returns a Scheduler that drives driver and reports transitions via
// report. states must be fed externally (via Observe) with every
// FromServer.UpdateWorkloadState republish so dependency gates see the
// cluster-wide picture, not just this agent's own reports.
func New(driver runtime.Driver, states *workloadstate.Aggregator, report func([]wire.WorkloadState), logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		driver: driver,
		states: states,
		report: report,
		logger: logger,
		tasks:  map[string]*task{},
	}
	go s.watchExits()
	return s
}

// Observe feeds a cluster-wide WorkloadState republish into the
// scheduler's local view, unblocking any task polling a dependency gate.
func (s *Scheduler) Observe(reports []wire.WorkloadState) {
	s.states.Apply(reports)
}

// HandleUpdateWorkload applies one UpdateWorkload directive: each named
// workload's task is superseded (coalesced) by a fresh generation running
// the new directive.
func (s *Scheduler) HandleUpdateWorkload(msg wire.UpdateWorkloadMsg) {
	for _, added := range msg.AddedWorkloads {
		s.supersede(added.Name, func(ctx context.Context, t *task) { t.runAdd(ctx, added) })
	}
	for _, deleted := range msg.DeletedWorkloads {
		s.supersede(deleted.Name, func(ctx context.Context, t *task) { t.runDelete(ctx, deleted) })
	}
}

func (s *Scheduler) supersede(name string, run func(context.Context, *task)) {
	s.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		name:    name,
		sched:   s,
		cancel:  cancel,
		backoff: backoffBase,
	}
	if prev, ok := s.tasks[name]; ok {
		prev.cancel()
		// Carry over the running process so the new generation can stop it.
		prev.mu.Lock()
		t.agent, t.handle, t.state = prev.agent, prev.handle, prev.state
		prev.mu.Unlock()
	}
	s.tasks[name] = t
	s.mu.Unlock()

	go run(ctx, t)
}

// watchExits drains the driver's exit notifications and dispatches each to
// the owning task, if the handle is still current.
func (s *Scheduler) watchExits() {
	for exit := range s.driver.Exits() {
		s.mu.Lock()
		for _, t := range s.tasks {
			if t.currentHandle() == exit.Handle {
				t.onExit(exit.Status)
				break
			}
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) emit(ws wire.WorkloadState) {
	if s.report != nil {
		s.report([]wire.WorkloadState{ws})
	}
	s.states.Apply([]wire.WorkloadState{ws})
}
