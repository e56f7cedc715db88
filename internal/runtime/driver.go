package runtime

import "time"

// Handle identifies one running workload instance to its driver. Opaque
// outside this package.
type Handle string

// ExitStatus classifies how a running workload instance terminated.
type ExitStatus int

const (
	ExitSucceeded ExitStatus = iota
	ExitFailed
	ExitSignaled
)

func (s ExitStatus) String() string {
	switch s {
	case ExitSucceeded:
		return "succeeded"
	case ExitFailed:
		return "failed"
	case ExitSignaled:
		return "signaled"
	default:
		return "unknown"
	}
}

// Exit is one asynchronous on_exit notification for a Handle this driver
// produced.
type Exit struct {
	Handle Handle
	Status ExitStatus
}

// DeletionPolicy governs how Stop waits before escalating. GracePeriod <= 0
// means use the driver's default.
type DeletionPolicy struct {
	GracePeriod time.Duration
}

// Driver is the interface the Agent Scheduler drives to start and stop
// workload instances. A real implementation would shell out to a
// container engine (Podman); that driver is out of scope here, so the
// only implementation shipped is Fake.
type Driver interface {
	// Start launches a workload instance. runtimeConfig is opaque to the
	// scheduler and interpreted only by the driver.
	Start(workloadName, runtimeName, runtimeConfig string) (Handle, error)

	// Stop asks a running instance to terminate, escalating per policy.
	// Stop is retried by the caller on error with unbounded retries, since
	// the authoritative state must eventually reach EXEC_REMOVED.
	Stop(h Handle, policy DeletionPolicy) error

	// Exits delivers on_exit notifications for handles this driver
	// produced. The channel is never closed by the driver.
	Exits() <-chan Exit
}

// RuntimeError wraps a driver failure. Per the error taxonomy, a start
// failure is recorded as EXEC_FAILED directly; no response is synthesized
// because no request directly awaits a RuntimeError.
type RuntimeError struct {
	Workload string
	Op       string // "start" or "stop"
	Err      error
}

func (e *RuntimeError) Error() string {
	return "runtime " + e.Op + " failed for " + e.Workload + ": " + e.Err.Error()
}

func (e *RuntimeError) Unwrap() error { return e.Err }
