package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/simone-weiss/ankaios/internal/runtime"
	"github.com/simone-weiss/ankaios/internal/wire"
)

// task owns one workload name's state machine. A new task supersedes the
// previous one for that name; the old task's context is canceled so its
// goroutine exits at its next suspension point rather than racing the new
// generation's driver calls.
type task struct {
	name   string
	sched  *Scheduler
	cancel context.CancelFunc

	mu      sync.Mutex
	agent   string
	handle  runtime.Handle
	state   wire.ExecutionState
	restart bool
	runtime string
	config  string

	backoff     time.Duration
	stableSince time.Time
	stoppedByUs bool
}

func (t *task) currentHandle() runtime.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle
}

func (t *task) setState(s wire.ExecutionState) wire.WorkloadState {
	t.mu.Lock()
	t.state = s
	agent := t.agent
	t.mu.Unlock()
	return wire.WorkloadState{WorkloadName: t.name, AgentName: agent, ExecutionState: s}
}

func (t *task) currentState() wire.ExecutionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// runAdd drives EXEC_PENDING -> EXEC_WAITING_TO_START -> EXEC_STARTING ->
// EXEC_RUNNING|EXEC_FAILED for one AddedWorkload generation.
func (t *task) runAdd(ctx context.Context, added wire.AddedWorkload) {
	t.mu.Lock()
	t.agent = added.Agent
	t.restart = added.Restart
	t.runtime = added.Runtime
	t.config = added.RuntimeConfig
	t.mu.Unlock()

	t.sched.emit(t.setState(wire.ExecPending))

	if !t.waitDependencies(ctx, added.Dependencies) {
		return
	}

	t.sched.emit(t.setState(wire.ExecWaitingToStart))
	t.start(ctx)
}

// waitDependencies blocks until every AddCondition dependency is satisfied
// by the scheduler's local (cluster-wide) workload-state view, or ctx is
// canceled. Returns false if canceled first.
func (t *task) waitDependencies(ctx context.Context, deps map[string]wire.AddCondition) bool {
	if len(deps) == 0 {
		return true
	}
	ticker := time.NewTicker(depPollEvery)
	defer ticker.Stop()
	for {
		if t.dependenciesSatisfied(deps) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (t *task) dependenciesSatisfied(deps map[string]wire.AddCondition) bool {
	for depName, cond := range deps {
		if !t.addConditionMet(depName, cond) {
			return false
		}
	}
	return true
}

func (t *task) addConditionMet(depName string, cond wire.AddCondition) bool {
	var want wire.ExecutionState
	switch cond {
	case wire.AddCondRunning:
		want = wire.ExecRunning
	case wire.AddCondSucceeded:
		want = wire.ExecSucceeded
	case wire.AddCondFailed:
		want = wire.ExecFailed
	}
	for _, ws := range t.sched.states.ForWorkload(depName) {
		if ws.ExecutionState == want {
			return true
		}
	}
	return false
}

func (t *task) start(ctx context.Context) {
	t.mu.Lock()
	name, rt, cfg := t.name, t.runtime, t.config
	t.mu.Unlock()

	t.sched.emit(t.setState(wire.ExecStarting))

	handle, err := t.sched.driver.Start(name, rt, cfg)
	if err != nil {
		t.sched.logger.Warn("start failed", "workload", name, "error", err)
		t.sched.emit(t.setState(wire.ExecFailed))
		return
	}

	t.mu.Lock()
	t.handle = handle
	t.stoppedByUs = false
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return
	case <-time.After(50 * time.Millisecond):
	}

	if t.currentState() == wire.ExecStarting {
		t.sched.emit(t.setState(wire.ExecRunning))
		t.mu.Lock()
		t.stableSince = time.Now()
		t.mu.Unlock()
	}
}

// onExit handles an asynchronous on_exit notification for this task's
// current handle.
func (t *task) onExit(status runtime.ExitStatus) {
	switch t.currentState() {
	case wire.ExecWaitingToStop, wire.ExecStopping:
		t.sched.emit(t.setState(wire.ExecRemoved))
	case wire.ExecStarting:
		if status == runtime.ExitSucceeded {
			t.sched.emit(t.setState(wire.ExecSucceeded))
			return
		}
		t.sched.emit(t.setState(wire.ExecFailed))
		t.maybeRestart(status)
	case wire.ExecRunning:
		if status == runtime.ExitSucceeded {
			t.sched.emit(t.setState(wire.ExecSucceeded))
			return
		}
		t.sched.emit(t.setState(wire.ExecFailed))
		t.maybeRestart(status)
	}
}

// maybeRestart re-enters EXEC_STARTING after an exponential backoff when
// the task was configured with restart=true. Backoff resets to base once
// a generation has run stably for stableReset.
func (t *task) maybeRestart(status runtime.ExitStatus) {
	t.mu.Lock()
	restart := t.restart
	if !t.stableSince.IsZero() && time.Now().Sub(t.stableSince) >= stableReset {
		t.backoff = backoffBase
	}
	wait := t.backoff
	t.backoff *= 2
	if t.backoff > backoffCap {
		t.backoff = backoffCap
	}
	t.mu.Unlock()

	if !restart {
		return
	}

	go func() {
		time.Sleep(wait)
		if t.currentState() != wire.ExecFailed {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		t.sched.mu.Lock()
		t.cancel = cancel
		t.sched.mu.Unlock()
		t.start(ctx)
	}()
}

// runDelete drives EXEC_WAITING_TO_STOP -> EXEC_STOPPING -> EXEC_REMOVED
// for one DeletedWorkload generation.
func (t *task) runDelete(ctx context.Context, deleted wire.DeletedWorkload) {
	t.sched.emit(t.setState(wire.ExecWaitingToStop))

	if !t.waitDeleteConditions(ctx, deleted.Dependencies) {
		return
	}

	t.sched.emit(t.setState(wire.ExecStopping))

	handle := t.currentHandle()
	if handle == "" {
		t.sched.emit(t.setState(wire.ExecRemoved))
		return
	}

	t.mu.Lock()
	t.stoppedByUs = true
	t.mu.Unlock()

	retryWait := backoffBase
	for {
		err := t.sched.driver.Stop(handle, runtime.DeletionPolicy{})
		if err == nil {
			// A process that had already exited sends no further exit
			// notification, so confirm the removal here.
			if t.currentState() != wire.ExecRemoved {
				t.sched.emit(t.setState(wire.ExecRemoved))
			}
			return
		}
		t.sched.logger.Warn("stop failed, retrying", "workload", t.name, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryWait):
		}
		retryWait *= 2
		if retryWait > backoffCap {
			retryWait = backoffCap
		}
	}
}

// waitDeleteConditions blocks until every DeleteCondition in deps is
// satisfied, or ctx is canceled. Returns false if canceled first.
func (t *task) waitDeleteConditions(ctx context.Context, deps map[string]wire.DeleteCondition) bool {
	if len(deps) == 0 {
		return true
	}
	ticker := time.NewTicker(depPollEvery)
	defer ticker.Stop()
	for {
		if t.deleteConditionsSatisfied(deps) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// deleteConditionsSatisfied reports whether every dependent listed in deps
// no longer needs this workload alive, per its DeleteCondition.
func (t *task) deleteConditionsSatisfied(deps map[string]wire.DeleteCondition) bool {
	for depName, cond := range deps {
		if !t.deleteConditionMet(depName, cond) {
			return false
		}
	}
	return true
}

func (t *task) deleteConditionMet(depName string, cond wire.DeleteCondition) bool {
	live := map[wire.ExecutionState]bool{
		wire.ExecWaitingToStart: true,
		wire.ExecStarting:       true,
		wire.ExecRunning:        true,
	}
	if cond == wire.DelCondNotPendingNorRunning {
		live[wire.ExecPending] = true
	}

	for _, ws := range t.sched.states.ForWorkload(depName) {
		if live[ws.ExecutionState] {
			return false
		}
	}
	return true
}
