// Package runtime defines the interface the Agent Scheduler drives to
// start and stop workloads, and ships a fake implementation backed by
// os/exec since the real container runtime driver (Podman, Podman-Kube)
// is out of scope.
//
// A Driver has three operations: Start launches a workload and returns an
// opaque Handle, Stop asks a running workload to terminate, and Exits
// delivers asynchronous termination notifications for handles this driver
// produced. A real driver would shell out to `podman run`/`podman stop`;
// the fake one launches the command line carried in runtimeConfig
// directly, mirroring the teacher's JobRunner process-group and
// signal-escalation handling.
package runtime
