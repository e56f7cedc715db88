// Package workloadstate implements the Workload-State Aggregator: the sole
// writer of workloadStates. It merges UpdateWorkloadState reports from
// agents by overwriting the entry keyed by (workloadName, agentName),
// evicts entries that report EXEC_REMOVED, and republishes deltas (not
// snapshots) to subscribers.
package workloadstate
