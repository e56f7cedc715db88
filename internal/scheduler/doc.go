// Package scheduler implements the Agent Scheduler: a per-workload state
// machine mirroring wire.ExecutionState that turns UpdateWorkload
// directives from the Server into runtime.Driver calls and reports
// transitions back.
//
// Each workload named in an AddedWorkload or DeletedWorkload owns one
// *task, run as an independent goroutine so that inter-workload
// coordination happens only through the local wire.WorkloadState snapshot
// (workloadstate.Aggregator), never through direct references between
// tasks. A newer UpdateWorkload for the same name supersedes an in-flight
// one: the scheduler cancels the previous generation's task and starts the
// new one at once, handing it the previous task's agent, process handle and
// state. Directives are not queued behind an in-flight transition, and a
// driver call the canceled generation had already begun runs to completion.
package scheduler
